package cmd

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/aegisalert/aegis/client/realtime"
	"github.com/aegisalert/aegis/client/realtime/realtimetest"
	"github.com/aegisalert/aegis/client/restapi/restapitest"
	"github.com/aegisalert/aegis/shared"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type cliFixture struct {
	server  *restapitest.Server
	channel *realtimetest.FakeChannel
}

// setupCLI points the CLI at in-memory fakes: a fake backend, a fake push
// channel & a throwaway session directory, all via the same package vars the
// real wiring uses.
func setupCLI(t *testing.T) *cliFixture {
	server := restapitest.NewServer()
	t.Cleanup(server.Close)

	geocoder := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprint(rw, `{"display_name": "100 Queen St W, Toronto"}`)
	}))
	t.Cleanup(geocoder.Close)

	dir := t.TempDir()
	configFilePath := filepath.Join(dir, "config.yml")
	content := fmt.Sprintf(`api:
  baseUrl: "%v"

realtime:
  brokerUrl: "tcp://localhost:1883"

location:
  latitude: 43.6532
  longitude: -79.3832
  geocoderUrl: "%v"
`, server.URL, geocoder.URL)
	err := ioutil.WriteFile(configFilePath, []byte(content), 0600)
	assert.Nil(t, err)

	// Save the package wiring before stubbing it out
	// And revert after the test is done
	savedCfgFile := cfgFile
	savedNewChannel := newChannel
	savedSessionDir := sessionDir
	savedIsTestEnv := isTestEnv
	t.Cleanup(func() {
		cfgFile = savedCfgFile
		newChannel = savedNewChannel
		sessionDir = savedSessionDir
		isTestEnv = savedIsTestEnv
	})

	channel := realtimetest.NewFakeChannel()
	sessionsDir := filepath.Join(dir, "sessions")

	cfgFile = configFilePath
	isTestEnv = true
	newChannel = func(conf shared.RealtimeConfig, logg *zap.SugaredLogger) realtime.Channel { return channel }
	sessionDir = func() (string, error) { return sessionsDir, nil }

	return &cliFixture{server: server, channel: channel}
}

func runCommand(args ...string) (string, error) {
	buff := new(bytes.Buffer)
	rootCmd.SetOut(buff)
	rootCmd.SetErr(buff)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return buff.String(), err
}

func TestLoginCmd(t *testing.T) {
	f := setupCLI(t)
	f.server.SeedUser("Rachel Zane", "rachel@example.com", "pw-123456", "responder")

	out, err := runCommand("login", "--email", "rachel@example.com", "--password", "nope")
	assert.NotNil(t, err, "bad credentials must fail")

	out, err = runCommand("login", "--email", "rachel@example.com", "--password", "pw-123456")
	assert.Nil(t, err)
	assert.Contains(t, out, "Signed in as Rachel Zane")
	assert.Len(t, f.channel.Joins, 1, "login joins the responder group")

	out, err = runCommand("whoami")
	assert.Nil(t, err)
	assert.Contains(t, out, "Rachel Zane")

	out, err = runCommand("logout")
	assert.Nil(t, err)
	assert.Contains(t, out, "Signed out")

	_, err = runCommand("whoami")
	assert.NotNil(t, err, "no session after logout")
}

func TestTriggerAndRespondCmds(t *testing.T) {
	f := setupCLI(t)
	user := f.server.SeedUser("Harvey Specter", "harvey@example.com", "pw-123456", "enduser")
	f.server.SeedUser("Rachel Zane", "rachel@example.com", "pw-123456", "responder")
	device := f.server.SeedDevice("AB-100", "button", "active", 80, user.ID)

	_, err := runCommand("login", "--email", "harvey@example.com", "--password", "pw-123456")
	assert.Nil(t, err)

	out, err := runCommand("trigger", "--device", device.ID, "--description", "chest pain")
	assert.Nil(t, err)
	assert.Contains(t, out, "100 Queen St W, Toronto")
	assert.Contains(t, out, "1 responder(s) notified")

	matches := regexp.MustCompile(`Alert (\S+) raised`).FindStringSubmatch(out)
	assert.Len(t, matches, 2)
	triggerID := matches[1]

	// a responder picks it up & works it to completion
	_, err = runCommand("login", "--email", "rachel@example.com", "--password", "pw-123456")
	assert.Nil(t, err)

	out, err = runCommand("alerts")
	assert.Nil(t, err)
	assert.Contains(t, out, "Harvey Specter")

	out, err = runCommand("accept", triggerID)
	assert.Nil(t, err)
	assert.Contains(t, out, "accepted")

	for _, want := range []string{"en_route", "arrived", "completed"} {
		out, err = runCommand("advance", triggerID)
		assert.Nil(t, err)
		assert.Contains(t, out, want)
	}

	_, err = runCommand("advance", triggerID)
	assert.NotNil(t, err, "completed is terminal")
}

func TestCancelCmd(t *testing.T) {
	f := setupCLI(t)
	user := f.server.SeedUser("Harvey Specter", "harvey@example.com", "pw-123456", "enduser")
	device := f.server.SeedDevice("AB-100", "button", "active", 80, user.ID)

	_, err := runCommand("login", "--email", "harvey@example.com", "--password", "pw-123456")
	assert.Nil(t, err)

	out, err := runCommand("trigger", "--device", device.ID)
	assert.Nil(t, err)

	triggerID := regexp.MustCompile(`Alert (\S+) raised`).FindStringSubmatch(out)[1]

	out, err = runCommand("cancel", triggerID)
	assert.Nil(t, err)
	assert.Contains(t, out, "cancelled")

	_, err = runCommand("cancel", triggerID)
	assert.NotNil(t, err, "terminal alerts cannot be cancelled again")
}
