package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/buildermatch/internal/auth"
	"github.com/sakif/buildermatch/internal/service"
)

// ProfileHandler serves the profile page, builder onboarding and skills.
type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

func NewProfileHandler(profiles *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// HandleMe returns the caller's profile, portfolio and gating status.
//
// HTTP: GET /api/me
func (h *ProfileHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	me, err := h.profiles.Me(r.Context(), auth.SessionFromContext(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

// HandleUpdateBasics edits the free-text profile fields.
//
// HTTP: PUT /api/me/basics
func (h *ProfileHandler) HandleUpdateBasics(w http.ResponseWriter, r *http.Request) {
	var in service.BasicsInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	profile, err := h.profiles.UpdateBasics(r.Context(), auth.SessionFromContext(r.Context()), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"profile": profile})
}

// HandleSaveOnboarding stores the builder profile.
//
// HTTP: PUT /api/me/onboarding
func (h *ProfileHandler) HandleSaveOnboarding(w http.ResponseWriter, r *http.Request) {
	var in service.OnboardingInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	result, err := h.profiles.SaveOnboarding(r.Context(), auth.SessionFromContext(r.Context()), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"profile":  result.Profile,
		"redirect": result.Redirect,
	})
}

// HandleOnboardingStatus tells /find whether to show the form.
//
// HTTP: GET /api/me/onboarding-status
func (h *ProfileHandler) HandleOnboardingStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.profiles.OnboardingStatus(r.Context(), auth.SessionFromContext(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandlePublicProfile shows another builder's profile.
//
// HTTP: GET /api/people/{id}
func (h *ProfileHandler) HandlePublicProfile(w http.ResponseWriter, r *http.Request) {
	view, err := h.profiles.PublicProfile(r.Context(), auth.SessionFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleListSkills returns the skill catalog.
//
// HTTP: GET /api/skills
func (h *ProfileHandler) HandleListSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := h.profiles.ListSkills(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"skills": skills})
}

// HandleCreateSkill adds a skill to the catalog.
//
// HTTP: POST /api/skills
func (h *ProfileHandler) HandleCreateSkill(w http.ResponseWriter, r *http.Request) {
	var in service.NewSkillInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	skill, err := h.profiles.CreateSkill(r.Context(), auth.SessionFromContext(r.Context()), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]any{"skill": skill})
}

type skillsRequest struct {
	Skills []service.SkillInput `json:"skills"`
}

// HandleReplaceSkills replaces the caller's skill list.
//
// HTTP: PUT /api/me/skills
func (h *ProfileHandler) HandleReplaceSkills(w http.ResponseWriter, r *http.Request) {
	var req skillsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	skills, err := h.profiles.ReplaceSkills(r.Context(), auth.SessionFromContext(r.Context()), req.Skills)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"skills": skills})
}
