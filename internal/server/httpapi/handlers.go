package httpapi

import (
	"net/http"
	"time"

	"github.com/picvault/picvault/internal/server/models"
)

type userResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Role             string    `json:"role"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	CreatedAt        time.Time `json:"created_at"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:               u.ID,
		Name:             u.Name,
		Email:            u.Email,
		Role:             u.Role,
		TwoFactorEnabled: u.TwoFactorEnabled,
		CreatedAt:        u.CreatedAt,
	}
}

type imageResponse struct {
	ID          string    `json:"id"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Visibility  string    `json:"visibility"`
	CreatedAt   time.Time `json:"created_at"`
}

func toImageResponse(im *models.Image) imageResponse {
	return imageResponse{
		ID:          im.ID,
		FileName:    im.FileName,
		ContentType: im.ContentType,
		SizeBytes:   im.SizeBytes,
		Visibility:  im.Visibility,
		CreatedAt:   im.CreatedAt,
	}
}

func (s *HTTPServer) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := s.users.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.writeServiceError(r.Context(), w, err)
		return
	}

	s.logger.Info(r.Context(), "user registered", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

type loginResponse struct {
	MfaRequired  bool   `json:"mfa_required"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		MfaRequired:  result.MfaRequired,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	})
}

func (s *HTTPServer) handleLoginTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.auth.VerifyTwoFactorLogin(r.Context(), req.Email, req.Code)
	if err != nil {
		s.writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	})
}

func (s *HTTPServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	access, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"access_token": access})
}

func (s *HTTPServer) handleTwoFactorSetup(w http.ResponseWriter, r *http.Request) {
	email, _ := principalFromContext(r.Context())

	setup, err := s.auth.SetupTwoFactor(email)
	if err != nil {
		s.writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"seed":             setup.Seed,
		"provisioning_uri": setup.ProvisioningURI,
	})
}

func (s *HTTPServer) handleTwoFactorVerify(w http.ResponseWriter, r *http.Request) {
	email, _ := principalFromContext(r.Context())

	var req struct {
		Seed string `json:"seed"`
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.auth.VerifyAndEnableTwoFactor(r.Context(), email, req.Seed, req.Code); err != nil {
		s.writeServiceError(r.Context(), w, err)
		return
	}

	s.logger.Info(r.Context(), "two-factor authentication enabled")
	writeJSON(w, http.StatusOK, map[string]string{"status": "enabled"})
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	email, _ := principalFromContext(r.Context())

	user, err := s.users.GetByEmail(r.Context(), email)
	if err != nil {
		s.writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *HTTPServer) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	email, _ := principalFromContext(r.Context())

	var req struct {
		Name string `json:"name"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	user, err := s.users.GetByEmail(r.Context(), email)
	if err != nil {
		s.writeServiceError(r.Context(), w, err)
		return
	}

	updated, err := s.users.UpdateName(r.Context(), user.ID, req.Name)
	if err != nil {
		s.writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

func (s *HTTPServer) handleDeleteMe(w http.ResponseWriter, r *http.Request) {
	email, _ := principalFromContext(r.Context())

	user, err := s.users.GetByEmail(r.Context(), email)
	if err != nil {
		s.writeServiceError(r.Context(), w, err)
		return
	}

	if err := s.users.Delete(r.Context(), user.ID); err != nil {
		s.writeServiceError(r.Context(), w, err)
		return
	}

	s.logger.Info(r.Context(), "user deleted", "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleImageUpload(w http.ResponseWriter, r *http.Request) {
	email, _ := principalFromContext(r.Context())

	var req struct {
		FileName    string `json:"file_name"`
		ContentType string `json:"content_type"`
		SizeBytes   int64  `json:"size_bytes"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.FileName == "" || req.ContentType == "" {
		writeError(w, http.StatusBadRequest, "file_name and content_type are required")
		return
	}

	upload, err := s.images.RequestUpload(r.Context(), email, req.FileName, req.ContentType, req.SizeBytes)
	if err != nil {
		s.writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		imageResponse
		UploadURL string `json:"upload_url"`
	}{toImageResponse(upload.Image), upload.UploadURL})
}

func (s *HTTPServer) handleImageList(w http.ResponseWriter, r *http.Request) {
	email, _ := principalFromContext(r.Context())

	list, err := s.images.List(r.Context(), email, 100, 0)
	if err != nil {
		s.writeServiceError(r.Context(), w, err)
		return
	}

	out := make([]imageResponse, 0, len(list))
	for _, im := range list {
		out = append(out, toImageResponse(im))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleImageView(w http.ResponseWriter, r *http.Request) {
	email, _ := principalFromContext(r.Context())

	url, err := s.images.ViewURL(r.Context(), email, r.PathValue("id"))
	if err != nil {
		s.writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (s *HTTPServer) handleImageUpdate(w http.ResponseWriter, r *http.Request) {
	email, _ := principalFromContext(r.Context())

	var req struct {
		FileName   string `json:"file_name"`
		Visibility string `json:"visibility"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	updated, err := s.images.UpdateMetadata(r.Context(), email, r.PathValue("id"), req.FileName, req.Visibility)
	if err != nil {
		s.writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toImageResponse(updated))
}

func (s *HTTPServer) handleImageDelete(w http.ResponseWriter, r *http.Request) {
	email, _ := principalFromContext(r.Context())

	if err := s.images.Delete(r.Context(), email, r.PathValue("id")); err != nil {
		s.writeServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
