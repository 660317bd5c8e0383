package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/example/mockserver/internal/auth"
)

// looseString accepts a JSON string or number, so {"password": 1234} works
// the same as {"password": "1234"}. A numeric zero counts as missing.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		if f, err := n.Float64(); err == nil && f == 0 {
			*s = ""
			return nil
		}
		*s = looseString(n.String())
		return nil
	}
	return errors.New("expected a string or a number")
}

type registerRequest struct {
	Email    string      `json:"email"`
	Username string      `json:"username"`
	Password looseString `json:"password"`
	FullName string      `json:"full_name"`
	Role     string      `json:"role"`
}

type loginRequest struct {
	Identifier string      `json:"identifier"`
	Email      string      `json:"email"`
	Username   string      `json:"username"`
	Password   looseString `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *App) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := a.Auth.Register(r.Context(), auth.RegisterInput{
		Email:    in.Email,
		Username: in.Username,
		Password: string(in.Password),
		FullName: in.FullName,
		Role:     in.Role,
	})
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, sess)
}

func (a *App) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, err := a.Auth.Login(r.Context(), auth.LoginInput{
		Identifier: in.Identifier,
		Email:      in.Email,
		Username:   in.Username,
		Password:   string(in.Password),
	})
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sess)
}

// HandleRefresh treats an unreadable body like a missing token: 401.
func (a *App) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	_ = decodeBody(r, &in)

	access, err := a.Auth.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"access_token": access})
}

func (a *App) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	_ = decodeBody(r, &in)

	if err := a.Auth.Logout(r.Context(), in.RefreshToken); err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *App) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, err := a.Auth.Me(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		a.writeAuthError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, user)
}
