// Package restapitest is an in-memory stand-in for the alert platform's REST
// API, used by client tests. It enforces the same lifecycle transition tables
// as the client, so scenario tests exercise the real rules end to end.
package restapitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/aegisalert/aegis/client/lifecycle"
	"github.com/aegisalert/aegis/client/restapi"
	"github.com/aegisalert/aegis/client/session"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

type Server struct {
	*httptest.Server

	mu        sync.Mutex
	users     map[string]*restapi.User
	passwords map[string]string
	devices   map[string]*restapi.Device
	triggers  map[string]*restapi.Trigger
	responses map[string]*restapi.Response
	tokens    map[string]string
	seq       int
}

func NewServer() *Server {
	s := &Server{
		users:     make(map[string]*restapi.User),
		passwords: make(map[string]string),
		devices:   make(map[string]*restapi.Device),
		triggers:  make(map[string]*restapi.Trigger),
		responses: make(map[string]*restapi.Response),
		tokens:    make(map[string]string),
	}

	router := mux.NewRouter()
	router.HandleFunc("/auth/login", s.login).Methods("POST")
	router.HandleFunc("/auth/register", s.register).Methods("POST")

	router.HandleFunc("/users", s.listUsers).Methods("GET")
	router.HandleFunc("/users/{id}", s.deleteUser).Methods("DELETE")

	router.HandleFunc("/devices", s.listDevices).Methods("GET")
	router.HandleFunc("/devices", s.createDevice).Methods("POST")
	router.HandleFunc("/devices/my-devices", s.myDevices).Methods("GET")
	router.HandleFunc("/devices/{id}/assign", s.assignDevice).Methods("PUT")
	router.HandleFunc("/devices/{id}/unassign", s.unassignDevice).Methods("PUT")

	router.HandleFunc("/triggers", s.listTriggers).Methods("GET")
	router.HandleFunc("/triggers", s.createTrigger).Methods("POST")
	router.HandleFunc("/triggers/active", s.activeTriggers).Methods("GET")
	router.HandleFunc("/triggers/my-triggers", s.myTriggers).Methods("GET")
	router.HandleFunc("/triggers/{id}/cancel", s.cancelTrigger).Methods("PUT")

	router.HandleFunc("/responses", s.createResponse).Methods("POST")
	router.HandleFunc("/responses/my-responses", s.myResponses).Methods("GET")
	router.HandleFunc("/responses/trigger/{id}", s.responsesForTrigger).Methods("GET")
	router.HandleFunc("/responses/{id}/status", s.updateResponseStatus).Methods("PUT")

	s.Server = httptest.NewServer(router)
	return s
}

// ---------------------------------------------------------------------------------//
// Seed helpers
// --------------------------------------------------------------------------------//

func (s *Server) SeedUser(name, email, password, role string) *restapi.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	user := &restapi.User{
		ID:        s.nextID("u"),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: time.Now(),
	}
	s.users[user.ID] = user
	s.passwords[email] = string(hash)

	return user
}

func (s *Server) SeedDevice(deviceID, deviceType, status string, battery int, assignedUserID string) *restapi.Device {
	s.mu.Lock()
	defer s.mu.Unlock()

	device := &restapi.Device{
		ID:             s.nextID("d"),
		DeviceID:       deviceID,
		Type:           deviceType,
		Status:         status,
		BatteryLevel:   battery,
		AssignedUserID: assignedUserID,
		CreatedAt:      time.Now(),
	}
	s.devices[device.ID] = device

	return device
}

// TokenFor issues a bearer token for a seeded user, bypassing /auth/login.
func (s *Server) TokenFor(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := "tok-" + uuid.New().String()
	s.tokens[token] = userID

	return token
}

// Trigger returns the stored trigger, for asserting on backend state.
func (s *Server) Trigger(id string) *restapi.Trigger {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.triggers[id]
}

func (s *Server) ResponseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.responses)
}

// ---------------------------------------------------------------------------------//
// Auth handlers
// --------------------------------------------------------------------------------//

func (s *Server) login(rw http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{}
	json.NewDecoder(r.Body).Decode(&creds)

	hash, ok := s.passwords[creds.Email]
	if !ok || bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Password)) != nil {
		writeError(rw, http.StatusUnauthorized, "email/password is invalid")
		return
	}

	user := s.userByEmail(creds.Email)
	token := "tok-" + uuid.New().String()
	s.tokens[token] = user.ID

	writeJSON(rw, http.StatusOK, map[string]interface{}{"token": token, "user": user})
}

func (s *Server) register(rw http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	params := restapi.RegisterParams{}
	json.NewDecoder(r.Body).Decode(&params)

	if s.userByEmail(params.Email) != nil {
		writeError(rw, http.StatusConflict, "an account with this email already exists")
		return
	}

	hash, _ := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.MinCost)
	user := &restapi.User{
		ID:        s.nextID("u"),
		Name:      params.Name,
		Email:     params.Email,
		Role:      params.Role,
		Phone:     params.Phone,
		CreatedAt: time.Now(),
	}
	s.users[user.ID] = user
	s.passwords[user.Email] = string(hash)

	token := "tok-" + uuid.New().String()
	s.tokens[token] = user.ID

	writeJSON(rw, http.StatusCreated, map[string]interface{}{"token": token, "user": user})
}

// ---------------------------------------------------------------------------------//
// User handlers
// --------------------------------------------------------------------------------//

func (s *Server) listUsers(rw http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	caller := s.caller(r)
	if caller == nil || caller.Role != session.ADMIN_ROLE {
		writeError(rw, http.StatusForbidden, "action is forbidden")
		return
	}

	users := []*restapi.User{}
	for _, user := range s.users {
		users = append(users, user)
	}
	writeList(rw, users, len(users))
}

func (s *Server) deleteUser(rw http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	caller := s.caller(r)
	if caller == nil || caller.Role != session.ADMIN_ROLE {
		writeError(rw, http.StatusForbidden, "action is forbidden")
		return
	}

	delete(s.users, mux.Vars(r)["id"])
	writeJSON(rw, http.StatusOK, map[string]interface{}{"data": nil})
}

// ---------------------------------------------------------------------------------//
// Device handlers
// --------------------------------------------------------------------------------//

func (s *Server) listDevices(rw http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices := []*restapi.Device{}
	for _, device := range s.devices {
		devices = append(devices, device)
	}
	writeList(rw, devices, len(devices))
}

func (s *Server) myDevices(rw http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	caller := s.caller(r)
	if caller == nil {
		writeError(rw, http.StatusUnauthorized, "no token provided")
		return
	}

	devices := []*restapi.Device{}
	for _, device := range s.devices {
		if device.AssignedUserID == caller.ID {
			devices = append(devices, device)
		}
	}
	writeList(rw, devices, len(devices))
}

func (s *Server) createDevice(rw http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	caller := s.caller(r)
	if caller == nil || caller.Role != session.ADMIN_ROLE {
		writeError(rw, http.StatusForbidden, "action is forbidden")
		return
	}

	params := restapi.CreateDeviceParams{}
	json.NewDecoder(r.Body).Decode(&params)

	device := &restapi.Device{
		ID:           s.nextID("d"),
		DeviceID:     params.DeviceID,
		Type:         params.Type,
		Status:       params.Status,
		BatteryLevel: params.BatteryLevel,
		CreatedAt:    time.Now(),
	}
	s.devices[device.ID] = device

	writeData(rw, http.StatusCreated, device)
}

func (s *Server) assignDevice(rw http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	device, ok := s.devices[mux.Vars(r)["id"]]
	if !ok {
		writeError(rw, http.StatusNotFound, "device not found")
		return
	}

	body := struct {
		UserID string `json:"user_id"`
	}{}
	json.NewDecoder(r.Body).Decode(&body)

	device.AssignedUserID = body.UserID
	writeData(rw, http.StatusOK, device)
}

func (s *Server) unassignDevice(rw http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	device, ok := s.devices[mux.Vars(r)["id"]]
	if !ok {
		writeError(rw, http.StatusNotFound, "device not found")
		return
	}

	device.AssignedUserID = ""
	writeData(rw, http.StatusOK, device)
}

// ---------------------------------------------------------------------------------//
// Trigger handlers
// --------------------------------------------------------------------------------//

func (s *Server) createTrigger(rw http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	caller := s.caller(r)
	if caller == nil {
		writeError(rw, http.StatusUnauthorized, "no token provided")
		return
	}

	params := restapi.CreateTriggerParams{}
	json.NewDecoder(r.Body).Decode(&params)

	device, ok := s.devices[params.DeviceID]
	if !ok || device.AssignedUserID != caller.ID {
		writeError(rw, http.StatusForbidden, "device is not assigned to you")
		return
	}

	if device.Status != restapi.ACTIVE_DEVICE {
		writeError(rw, http.StatusBadRequest, "device is not active")
		return
	}

	// notification fan-out: every responder is notified of a new alert
	notified := []string{}
	for _, user := range s.users {
		if user.Role == session.RESPONDER_ROLE {
			notified = append(notified, user.ID)
		}
	}

	now := time.Now()
	trigger := &restapi.Trigger{
		ID:                 s.nextID("t"),
		TriggeredBy:        *caller,
		DeviceID:           device.ID,
		Location:           params.Location,
		Description:        params.Description,
		Priority:           params.Priority,
		TriggerType:        params.TriggerType,
		BatteryLevel:       params.BatteryLevel,
		Status:             lifecycle.ACTIVE_TRIGGER,
		RespondersNotified: notified,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	s.triggers[trigger.ID] = trigger

	writeData(rw, http.StatusCreated, trigger)
}

func (s *Server) listTriggers(rw http.ResponseWriter, r *http.Request) {
	s.writeTriggers(rw, func(t *restapi.Trigger) bool { return true })
}

func (s *Server) activeTriggers(rw http.ResponseWriter, r *http.Request) {
	s.writeTriggers(rw, func(t *restapi.Trigger) bool {
		return t.Status == lifecycle.ACTIVE_TRIGGER || t.Status == lifecycle.RESPONDED_TRIGGER
	})
}

func (s *Server) myTriggers(rw http.ResponseWriter, r *http.Request) {
	caller := s.callerLocked(r)
	if caller == nil {
		writeError(rw, http.StatusUnauthorized, "no token provided")
		return
	}

	s.writeTriggers(rw, func(t *restapi.Trigger) bool {
		return t.TriggeredBy.ID == caller.ID
	})
}

func (s *Server) cancelTrigger(rw http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	caller := s.caller(r)
	if caller == nil {
		writeError(rw, http.StatusUnauthorized, "no token provided")
		return
	}

	trigger, ok := s.triggers[mux.Vars(r)["id"]]
	if !ok {
		writeError(rw, http.StatusNotFound, "trigger not found")
		return
	}

	if trigger.TriggeredBy.ID != caller.ID {
		writeError(rw, http.StatusForbidden, "only the triggering user can cancel an alert")
		return
	}

	if trigger.Status != lifecycle.ACTIVE_TRIGGER {
		writeError(rw, http.StatusForbidden,
			fmt.Sprintf("a %v alert can no longer be cancelled", trigger.Status))
		return
	}

	trigger.Status = lifecycle.CANCELLED_TRIGGER
	trigger.UpdatedAt = time.Now()

	writeData(rw, http.StatusOK, trigger)
}

// ---------------------------------------------------------------------------------//
// Response handlers
// --------------------------------------------------------------------------------//

func (s *Server) createResponse(rw http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	caller := s.caller(r)
	if caller == nil {
		writeError(rw, http.StatusUnauthorized, "no token provided")
		return
	}

	if caller.Role != session.RESPONDER_ROLE {
		writeError(rw, http.StatusForbidden, "only responders can accept alerts")
		return
	}

	params := restapi.CreateResponseParams{}
	json.NewDecoder(r.Body).Decode(&params)

	trigger, ok := s.triggers[params.TriggerID]
	if !ok {
		writeError(rw, http.StatusNotFound, "trigger not found")
		return
	}

	if lifecycle.IsTerminalTrigger(trigger.Status) {
		writeError(rw, http.StatusConflict, "alert is no longer open")
		return
	}

	// at most one non-terminal response per (trigger, responder)
	for _, response := range s.responses {
		if response.TriggerID == trigger.ID && response.ResponderID == caller.ID &&
			!lifecycle.IsTerminalResponse(response.Status) {
			writeError(rw, http.StatusConflict, "you already have an open response for this alert")
			return
		}
	}

	now := time.Now()
	response := &restapi.Response{
		ID:          s.nextID("r"),
		TriggerID:   trigger.ID,
		ResponderID: caller.ID,
		Responder:   caller,
		Status:      lifecycle.ACCEPTED_RESPONSE,
		Notes:       params.Notes,
		AcceptedAt:  now,
	}
	s.responses[response.ID] = response

	// first acceptance advances the trigger
	if lifecycle.CanTransitionTrigger(trigger.Status, lifecycle.RESPONDED_TRIGGER) {
		trigger.Status = lifecycle.RESPONDED_TRIGGER
		trigger.UpdatedAt = now
	}

	writeData(rw, http.StatusCreated, response)
}

func (s *Server) myResponses(rw http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	caller := s.caller(r)
	if caller == nil {
		writeError(rw, http.StatusUnauthorized, "no token provided")
		return
	}

	responses := []*restapi.Response{}
	for _, response := range s.responses {
		if response.ResponderID == caller.ID {
			responses = append(responses, response)
		}
	}
	writeList(rw, responses, len(responses))
}

func (s *Server) responsesForTrigger(rw http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	triggerID := mux.Vars(r)["id"]
	responses := []*restapi.Response{}
	for _, response := range s.responses {
		if response.TriggerID == triggerID {
			responses = append(responses, response)
		}
	}
	writeList(rw, responses, len(responses))
}

func (s *Server) updateResponseStatus(rw http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	caller := s.caller(r)
	if caller == nil {
		writeError(rw, http.StatusUnauthorized, "no token provided")
		return
	}

	response, ok := s.responses[mux.Vars(r)["id"]]
	if !ok {
		writeError(rw, http.StatusNotFound, "response not found")
		return
	}

	if response.ResponderID != caller.ID {
		writeError(rw, http.StatusForbidden, "only the assigned responder can update this response")
		return
	}

	params := restapi.UpdateResponseStatusParams{}
	json.NewDecoder(r.Body).Decode(&params)

	next := lifecycle.Normalize(params.Status)
	if !lifecycle.CanAdvanceResponse(response.Status, next) {
		writeError(rw, http.StatusUnprocessableEntity,
			fmt.Sprintf("invalid status transition from %v to %v", response.Status, next))
		return
	}

	now := time.Now()
	response.Status = next
	if params.Notes != "" {
		response.Notes = params.Notes
	}

	switch next {
	case lifecycle.ARRIVED_RESPONSE:
		response.ArrivedAt = &now
	case lifecycle.COMPLETED_RESPONSE:
		response.CompletedAt = &now
	}

	writeData(rw, http.StatusOK, response)
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func (s *Server) caller(r *http.Request) *restapi.User {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	userID, ok := s.tokens[token]
	if !ok {
		return nil
	}

	return s.users[userID]
}

func (s *Server) callerLocked(r *http.Request) *restapi.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.caller(r)
}

func (s *Server) userByEmail(email string) *restapi.User {
	for _, user := range s.users {
		if user.Email == email {
			return user
		}
	}

	return nil
}

func (s *Server) writeTriggers(rw http.ResponseWriter, keep func(*restapi.Trigger) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	triggers := []*restapi.Trigger{}
	for _, trigger := range s.triggers {
		if keep(trigger) {
			triggers = append(triggers, trigger)
		}
	}
	writeList(rw, triggers, len(triggers))
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%v-%v", prefix, s.seq)
}

func writeJSON(rw http.ResponseWriter, statusCode int, payload interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(payload)
}

func writeData(rw http.ResponseWriter, statusCode int, data interface{}) {
	writeJSON(rw, statusCode, map[string]interface{}{"data": data})
}

func writeList(rw http.ResponseWriter, data interface{}, count int) {
	writeJSON(rw, http.StatusOK, map[string]interface{}{"data": data, "count": count})
}

func writeError(rw http.ResponseWriter, statusCode int, message string) {
	writeJSON(rw, statusCode, map[string]interface{}{"message": message})
}
