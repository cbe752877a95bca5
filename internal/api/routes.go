package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/convertly/convertly-agent/internal/config"
	"github.com/convertly/convertly-agent/internal/conversion"
	"github.com/convertly/convertly-agent/internal/store"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Post("/login", loginHandler(cfg))
	r.Post("/logout", logoutHandler(cfg))
	r.Get("/session", sessionHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware(cfg.Session, cfg.Logger))

		r.Get("/prefs", getPrefsHandler(cfg))
		r.Put("/prefs", savePrefsHandler(cfg))

		r.Get("/workflow", getWorkflowHandler(cfg))
		r.Post("/workflow/asset", selectAssetHandler(cfg))
		r.Delete("/workflow/asset", clearAssetHandler(cfg))
		r.Post("/workflow/confirm", confirmHandler(cfg))
		r.Post("/workflow/reset", resetHandler(cfg))

		r.Get("/history", historyHandler(cfg))
		r.Delete("/history/{id}", removeHistoryHandler(cfg))

		r.Get("/preview", previewHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: config.Version,
			UptimeS: uptime,
		})
	}
}

func loginHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Email == "" || req.Password == "" {
			WriteError(w, http.StatusBadRequest, "email and password are required", "BAD_REQUEST")
			return
		}

		if err := cfg.Session.Login(r.Context(), req.Email, req.Password); err != nil {
			e := classifyError(err)
			WriteError(w, statusForError(e.Code), e.Error, e.Code)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func logoutHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Session.Logout(r.Context()); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func sessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, SessionResponse{
			Authenticated: cfg.Session.IsAuthenticated(r.Context()),
			UserID:        cfg.Session.CurrentUserID(r.Context()),
		})
	}
}

func getPrefsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Prefs.Load(r.Context()))
	}
}

func savePrefsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var prefs store.Prefs
		if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := cfg.Prefs.Save(r.Context(), prefs); err != nil {
			e := classifyError(err)
			WriteError(w, statusForError(e.Code), e.Error, e.Code)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func getWorkflowHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, WorkflowToResponse(cfg.Workflow.Snapshot()))
	}
}

func selectAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SelectAssetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		asset, err := conversion.NewAsset(req.Path, req.DisplayName, req.ContentType)
		if err != nil {
			e := classifyError(err)
			WriteError(w, http.StatusBadRequest, e.Error, e.Code)
			return
		}

		if err := cfg.Workflow.SelectAsset(asset); err != nil {
			e := classifyError(err)
			WriteError(w, statusForError(e.Code), e.Error, e.Code)
			return
		}

		WriteJSON(w, http.StatusCreated, WorkflowToResponse(cfg.Workflow.Snapshot()))
	}
}

func clearAssetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Workflow.ClearAsset(); err != nil {
			e := classifyError(err)
			WriteError(w, statusForError(e.Code), e.Error, e.Code)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func confirmHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Workflow.Confirm(r.Context()); err != nil {
			e := classifyError(err)
			WriteError(w, statusForError(e.Code), e.Error, e.Code)
			return
		}
		WriteJSON(w, http.StatusAccepted, WorkflowToResponse(cfg.Workflow.Snapshot()))
	}
}

func resetHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Workflow.Reset()
		w.WriteHeader(http.StatusNoContent)
	}
}

func historyHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// A title query filters the last loaded entries locally without
		// re-triggering a fetch.
		if query := r.URL.Query().Get("q"); query != "" {
			WriteJSON(w, http.StatusOK, HistoryResponse{
				Status:  "loaded",
				Entries: entriesToResponse(cfg.History.FilterByTitle(query)),
			})
			return
		}

		if err := cfg.History.Load(r.Context()); err != nil {
			snap := cfg.History.Snapshot()
			e := classifyError(err)
			resp := HistoryToResponse(snap)
			WriteJSON(w, statusForError(e.Code), resp)
			return
		}

		WriteJSON(w, http.StatusOK, HistoryToResponse(cfg.History.Snapshot()))
	}
}

func removeHistoryHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "entry id required", "BAD_REQUEST")
			return
		}

		if !cfg.History.Remove(id) {
			WriteError(w, http.StatusNotFound, "entry not found", "NOT_FOUND")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func previewHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			WriteError(w, http.StatusBadRequest, "token is required", "BAD_REQUEST")
			return
		}

		if err := cfg.Preview.Serve(w, r, token); err != nil {
			cfg.Logger.Error("preview error", "error", err)
		}
	}
}
