package adapthttp

import (
	"encoding/json"
	"io"
)

// View names passed to a Renderer.
const (
	ViewHome         = "homepage"
	ViewSignup       = "signup"
	ViewLogin        = "login"
	ViewSignupSubmit = "signup-submit"
	ViewLoginSubmit  = "login-submit"
	ViewStats        = "stats"
	ViewNotFound     = "404"
	ViewError        = "error"
)

// Renderer turns a named view and its payload into a response body.
type Renderer interface {
	Render(w io.Writer, view string, data any) error
}

// JSONRenderer writes {"view": name, "data": payload}.
type JSONRenderer struct{}

// ContentType reports the media type of rendered output.
func (JSONRenderer) ContentType() string {
	return "application/json; charset=utf-8"
}

// Render implements Renderer.
func (JSONRenderer) Render(w io.Writer, view string, data any) error {
	return json.NewEncoder(w).Encode(struct {
		View string `json:"view"`
		Data any    `json:"data"`
	}{View: view, Data: data})
}
