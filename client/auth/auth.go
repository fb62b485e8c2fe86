// Package auth orchestrates login, registration, logout & startup session
// restoration, keeping the session store and the realtime channel moving in
// lockstep. It is the only writer of session state and the only opener of
// the channel - every other component just reads.
package auth

import (
	"context"
	"time"

	"github.com/aegisalert/aegis/client/realtime"
	"github.com/aegisalert/aegis/client/restapi"
	"github.com/aegisalert/aegis/client/session"
	"github.com/golang-jwt/jwt"
	"go.uber.org/zap"
)

type Flow struct {
	store   *session.Store
	api     *restapi.Client
	channel realtime.Channel
	logg    *zap.SugaredLogger
}

func NewFlow(store *session.Store, api *restapi.Client, channel realtime.Channel, logg *zap.SugaredLogger) *Flow {
	return &Flow{store: store, api: api, channel: channel, logg: logg}
}

// Login authenticates against the backend, persists the session & brings the
// realtime channel up under the role-scoped join identity. Any failure after
// the session was written rolls everything back - a caller never observes a
// saved session with a dead channel, or vice versa.
func (f *Flow) Login(ctx context.Context, email, password string) (*session.Session, error) {
	result, err := f.api.Login(ctx, restapi.LoginParams{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	return f.establish(ctx, result)
}

// Register creates an account; the contract is otherwise identical to Login.
func (f *Flow) Register(ctx context.Context, params restapi.RegisterParams) (*session.Session, error) {
	result, err := f.api.Register(ctx, params)
	if err != nil {
		return nil, err
	}

	return f.establish(ctx, result)
}

// Logout clears the session & closes the channel. The channel is guaranteed
// down before this returns; no network round trip is involved.
func (f *Flow) Logout() error {
	err := f.store.Clear()
	f.channel.Disconnect()

	return err
}

// Bootstrap restores a persisted session at process start. A missing,
// corrupt or expired session leaves the process cleanly unauthenticated
// with a nil error - startup must never crash on stale local state. A
// channel failure rolls back the in-memory session but keeps the persisted
// credential, since transient network trouble at boot shouldn't destroy a
// valid login.
func (f *Flow) Bootstrap(ctx context.Context) (*session.Session, error) {
	sess, err := f.store.Load()
	if err != nil || sess == nil {
		return nil, err
	}

	if tokenExpired(sess.Token) {
		f.logg.Info("stored credential has expired, signing out")
		f.store.Clear()
		return nil, nil
	}

	if err := f.openChannel(ctx, sess); err != nil {
		f.store.ClearMemory()
		f.channel.Disconnect()
		return nil, err
	}

	return sess, nil
}

// Current returns the authenticated session, or nil.
func (f *Flow) Current() *session.Session {
	return f.store.Current()
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func (f *Flow) establish(ctx context.Context, result *restapi.AuthResult) (*session.Session, error) {
	sess := &session.Session{
		UserID:      result.User.ID,
		Role:        result.User.Role,
		DisplayName: result.User.Name,
		Token:       result.Token,
	}

	if err := f.store.Save(sess); err != nil {
		return nil, err
	}

	if err := f.openChannel(ctx, sess); err != nil {
		f.store.Clear()
		f.channel.Disconnect()
		return nil, err
	}

	return sess, nil
}

func (f *Flow) openChannel(ctx context.Context, sess *session.Session) error {
	if err := f.channel.Connect(ctx); err != nil {
		return err
	}

	// one identity-join per successful auth transition; the channel
	// re-applies it on reconnects
	return f.channel.Join(realtime.Identity{UserID: sess.UserID, Role: sess.Role})
}

// tokenExpired inspects the credential's exp claim without verifying the
// signature - verification is the server's job, this just avoids booting
// with a credential the backend is guaranteed to reject. Opaque (non-JWT)
// tokens are assumed live.
func tokenExpired(token string) bool {
	claims := jwt.StandardClaims{}
	_, _, err := new(jwt.Parser).ParseUnverified(token, &claims)
	if err != nil {
		return false
	}

	return claims.ExpiresAt > 0 && time.Unix(claims.ExpiresAt, 0).Before(time.Now())
}
