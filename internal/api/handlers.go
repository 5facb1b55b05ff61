package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"habittracker/internal/access"
	"habittracker/internal/export"
	"habittracker/internal/models"
	"habittracker/internal/service"

	"github.com/go-chi/chi/v5"
)

const (
	maxBodyBytes = 1 << 20
	xlsxMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body service.RegisterInput
	if err := decodeJSON(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	user, err := s.services.Users.Register(r.Context(), &body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *HTTPServer) handleToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	token, err := s.services.Users.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, token)
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	id := mustIdentity(r)
	user, err := s.services.Users.Me(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var body models.ProfileUpdate
	if err := decodeJSON(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	user, err := s.services.Users.UpdateProfile(r.Context(), mustIdentity(r), &body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	var body models.HabitInput
	if err := decodeJSON(r, &body); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	habit, err := s.services.Habits.Create(r.Context(), mustIdentity(r), &body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, habit)
}

func (s *HTTPServer) handleListHabits(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	result, err := s.services.Habits.List(r.Context(), mustIdentity(r), page, size)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleListPublic(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	result, err := s.services.Habits.ListPublic(r.Context(), page, size)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleGetPublic(w http.ResponseWriter, r *http.Request) {
	habitID, ok := habitIDParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	habit, err := s.services.Habits.GetPublic(r.Context(), habitID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

func (s *HTTPServer) handleGetHabit(w http.ResponseWriter, r *http.Request) {
	habitID, ok := habitIDParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	habit, err := s.services.Habits.Get(r.Context(), mustIdentity(r), habitID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

func (s *HTTPServer) handleUpdateHabit(partial bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		habitID, ok := habitIDParam(r)
		if !ok {
			writeError(w, http.StatusNotFound, "not found")
			return
		}

		var body models.HabitInput
		if err := decodeJSON(r, &body); err != nil {
			s.writeServiceError(w, r, err)
			return
		}

		habit, err := s.services.Habits.Update(r.Context(), mustIdentity(r), habitID, &body, partial)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, habit)
	}
}

func (s *HTTPServer) handleDeleteHabit(w http.ResponseWriter, r *http.Request) {
	habitID, ok := habitIDParam(r)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if err := s.services.Habits.Delete(r.Context(), mustIdentity(r), habitID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	habits, err := s.services.Habits.ExportAll(r.Context(), mustIdentity(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	// Собираем файл в памяти, чтобы ошибка не оборвала уже начатый ответ
	var buf bytes.Buffer
	if err := export.HabitsXLSX(&buf, s.cfg.Exports.SheetName, habits); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	fileName := fmt.Sprintf("habits_%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func mustIdentity(r *http.Request) access.Identity {
	id, ok := identityFrom(r.Context())
	if !ok {
		panic("api: handler mounted without auth middleware")
	}
	return id
}

func habitIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// pageParams reads page and page_size. Absent values mean page 1 and the default size.
func pageParams(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	verr := service.NewValidationError()

	parse := func(key string, def int) int {
		raw := strings.TrimSpace(q.Get(key))
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			verr.Add(key, "A valid integer is required.")
			return def
		}
		return n
	}

	page := parse("page", 1)
	size := parse("page_size", 0)
	return page, size, verr.OrNil()
}

// decodeJSON reads a JSON object body. Type mismatches are reported against the offending field.
func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return service.NewFieldError(service.NonFieldKey, "could not read request body")
	}
	if len(body) > maxBodyBytes {
		return service.NewFieldError(service.NonFieldKey, "request body too large")
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}

	if err := json.Unmarshal(body, v); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return service.NewFieldError(service.NonFieldKey, "malformed JSON")
		}
		return fieldErrors(body, v)
	}
	return nil
}

// fieldErrors decodes every key of body into its struct field separately, so errors raised by
// custom unmarshalers are reported under the key that caused them.
func fieldErrors(body []byte, v any) *service.ValidationError {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return service.NewFieldError(service.NonFieldKey, "expected a JSON object")
	}

	verr := service.NewValidationError()
	rt := reflect.TypeOf(v)
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt.Kind() == reflect.Struct {
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				continue
			}
			data, ok := raw[name]
			if !ok {
				continue
			}
			if err := json.Unmarshal(data, reflect.New(f.Type).Interface()); err != nil {
				verr.Add(name, fieldMessage(err))
			}
		}
	}

	if len(verr.Fields) == 0 {
		verr.Add(service.NonFieldKey, "invalid request body")
	}
	return verr
}

func fieldMessage(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return "Incorrect type."
	}
	return err.Error()
}
