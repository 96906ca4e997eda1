package server

import (
	"context"
	"io"
	"net/http"

	"message-board/internal/auth"
	"message-board/internal/failure"
	"message-board/internal/message"
	"message-board/internal/storage"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
)

// MessageService is implemented by *message.Service
type MessageService interface {
	Create(ctx context.Context, authorID uuid.UUID, in message.CreateInput) (storage.Message, error)
	Update(ctx context.Context, userID, id uuid.UUID, in message.UpdateInput) error
	Remove(ctx context.Context, userID, id uuid.UUID) error
	List(ctx context.Context, q message.ListQuery) (message.Page, error)
}

type Authenticator interface {
	Authenticate(accessToken string) (auth.Identity, error)
}

// AuthService is implemented by *auth.Service
type AuthService interface {
	Authenticator
	SignUp(ctx context.Context, in auth.SignUpInput) (auth.Tokens, error)
	SignIn(ctx context.Context, in auth.SignInInput) (auth.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (auth.Tokens, error)
	Logout(ctx context.Context, userID uuid.UUID) error
}

type parsers struct {
	signUpPool        fastjson.ParserPool
	signInPool        fastjson.ParserPool
	createMessagePool fastjson.ParserPool
	updateMessagePool fastjson.ParserPool
}

type handler struct {
	logger        *zap.SugaredLogger
	messages      MessageService
	auth          AuthService
	secureCookies bool
	parsers       parsers
}

// parseObject parses body into a JSON object and rejects properties not listed in allowed
func parseObject(p *fastjson.Parser, body []byte, allowed ...string) (*fastjson.Object, error) {
	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, failure.Validation("Malformed JSON")
	}

	o, err := v.Object()
	if err != nil {
		return nil, failure.Validation("Request body must be a JSON object")
	}

	var unknown string
	o.Visit(func(key []byte, _ *fastjson.Value) {
		if unknown != "" {
			return
		}
		for _, a := range allowed {
			if string(key) == a {
				return
			}
		}
		unknown = string(key)
	})
	if unknown != "" {
		return nil, failure.Validation("property " + unknown + " should not exist")
	}

	return o, nil
}

// stringField returns value of a string property, nil if it is absent or null
func stringField(o *fastjson.Object, name string) (*string, error) {
	v := o.Get(name)
	if v == nil || v.Type() == fastjson.TypeNull {
		return nil, nil
	}

	b, err := v.StringBytes()
	if err != nil {
		return nil, failure.Validation(name + " must be a string")
	}

	s := string(b)
	return &s, nil
}

func requiredString(o *fastjson.Object, name string) (string, error) {
	s, err := stringField(o, name)
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", failure.Validation(name + " should not be empty")
	}
	return *s, nil
}

func (h *handler) readObject(r *http.Request, pool *fastjson.ParserPool, allowed ...string) (*fastjson.Object, func(), error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, func() {}, failure.Validation("Can not read request body")
	}

	parser := pool.Get()
	release := func() { pool.Put(parser) }

	o, err := parseObject(parser, body, allowed...)
	if err != nil {
		release()
		return nil, func() {}, err
	}

	return o, release, nil
}

func (h *handler) credentials(r *http.Request, pool *fastjson.ParserPool) (string, string, error) {
	o, release, err := h.readObject(r, pool, "email", "password")
	if err != nil {
		return "", "", err
	}
	defer release()

	email, err := requiredString(o, "email")
	if err != nil {
		return "", "", err
	}
	password, err := requiredString(o, "password")
	if err != nil {
		return "", "", err
	}

	return email, password, nil
}

func (h *handler) currentUser(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := identityFrom(r.Context())
	if !ok {
		writeError(w, h.logger, auth.ErrInvalidToken)
	}
	return id, ok
}

// signUp handles HTTP requests on "/auth/signup" endpoint
func (h *handler) signUp(w http.ResponseWriter, r *http.Request) {
	email, password, err := h.credentials(r, &h.parsers.signUpPool)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	in := auth.SignUpInput{Email: email, Password: password}
	if err := in.Validate(); err != nil {
		writeError(w, h.logger, err)
		return
	}

	tokens, err := h.auth.SignUp(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	setAuthCookies(w, tokens, h.secureCookies)
	writeData(w, h.logger, http.StatusCreated, struct{}{}, nil)
}

// signIn handles HTTP requests on "/auth/login" endpoint
func (h *handler) signIn(w http.ResponseWriter, r *http.Request) {
	email, password, err := h.credentials(r, &h.parsers.signInPool)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	in := auth.SignInInput{Email: email, Password: password}
	if err := in.Validate(); err != nil {
		writeError(w, h.logger, err)
		return
	}

	tokens, err := h.auth.SignIn(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	setAuthCookies(w, tokens, h.secureCookies)
	writeData(w, h.logger, http.StatusOK, struct{}{}, nil)
}

// refresh handles HTTP requests on "/auth/refresh" endpoint
func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.auth.Refresh(r.Context(), cookieValue(r, refreshTokenCookie))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	setAuthCookies(w, tokens, h.secureCookies)
	writeData(w, h.logger, http.StatusOK, struct{}{}, nil)
}

// logout handles HTTP requests on "/auth/logout" endpoint
func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	id, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	if err := h.auth.Logout(r.Context(), id.UserID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	clearAuthCookies(w, h.secureCookies)
	writeData(w, h.logger, http.StatusOK, struct{}{}, nil)
}

// createMessage handles POST requests on "/messages" endpoint
func (h *handler) createMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	in, err := h.createInput(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	m, err := h.messages.Create(r.Context(), id.UserID, in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeData(w, h.logger, http.StatusCreated, m, nil)
}

func (h *handler) createInput(r *http.Request) (message.CreateInput, error) {
	o, release, err := h.readObject(r, &h.parsers.createMessagePool, "content", "tagName")
	if err != nil {
		return message.CreateInput{}, err
	}
	defer release()

	var in message.CreateInput
	if in.Content, err = requiredString(o, "content"); err != nil {
		return message.CreateInput{}, err
	}
	if in.TagName, err = requiredString(o, "tagName"); err != nil {
		return message.CreateInput{}, err
	}

	return in, in.Validate()
}

// listMessages handles GET requests on "/messages" endpoint
func (h *handler) listMessages(w http.ResponseWriter, r *http.Request) {
	q, err := message.ParseListQuery(r.URL.Query())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	page, err := h.messages.List(r.Context(), q)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeData(w, h.logger, http.StatusOK, page.Data, page.Meta)
}

// updateMessage handles PATCH requests on "/messages/{id}" endpoint
func (h *handler) updateMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	id, err := messageID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	in, err := h.updateInput(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.messages.Update(r.Context(), user.UserID, id, in); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeData(w, h.logger, http.StatusOK, struct{}{}, nil)
}

func (h *handler) updateInput(r *http.Request) (message.UpdateInput, error) {
	o, release, err := h.readObject(r, &h.parsers.updateMessagePool, "content", "tagName")
	if err != nil {
		return message.UpdateInput{}, err
	}
	defer release()

	var in message.UpdateInput
	if in.Content, err = stringField(o, "content"); err != nil {
		return message.UpdateInput{}, err
	}
	if in.TagName, err = stringField(o, "tagName"); err != nil {
		return message.UpdateInput{}, err
	}

	return in, in.Validate()
}

// deleteMessage handles DELETE requests on "/messages/{id}" endpoint
func (h *handler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	id, err := messageID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.messages.Remove(r.Context(), user.UserID, id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func messageID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return uuid.Nil, failure.Validation("Validation failed (uuid is expected)")
	}
	return id, nil
}
