package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fkash/fkash-backend/internal/domain"
	"github.com/fkash/fkash-backend/internal/logging"
	"github.com/fkash/fkash-backend/internal/service"
)

type userService interface {
	CreateUser(ctx context.Context, req service.CreateUserRequest) (*domain.User, *domain.Account, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*domain.User, *domain.Account, error)
}

type UserHandler struct {
	users userService
}

func NewUserHandler(users userService) *UserHandler {
	return &UserHandler{users: users}
}

type createUserRequest struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
	PIN   string `json:"pin"`
	Role  string `json:"role"`
}

func (r createUserRequest) Validate() []FieldError {
	var errs []FieldError
	if r.Phone == "" {
		errs = append(errs, FieldError{Field: "phone", Message: "required"})
	}
	if r.Name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	}
	if r.PIN == "" {
		errs = append(errs, FieldError{Field: "pin", Message: "required"})
	}
	if r.Role == "" {
		errs = append(errs, FieldError{Field: "role", Message: "required"})
	} else if !domain.UserRole(r.Role).IsValid() {
		errs = append(errs, FieldError{Field: "role", Message: "must be client, manager, or admin"})
	}
	return errs
}

type userDTO struct {
	ID        uuid.UUID `json:"id"`
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserDTO(u *domain.User) userDTO {
	return userDTO{
		ID:        u.ID,
		Phone:     u.Phone,
		Name:      u.Name,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

type profileDTO struct {
	User    userDTO    `json:"user"`
	Account accountDTO `json:"account"`
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	actorID, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	user, account, err := h.users.CreateUser(r.Context(), service.CreateUserRequest{
		ActorUserID: actorID,
		Phone:       req.Phone,
		Name:        req.Name,
		PIN:         req.PIN,
		Role:        domain.UserRole(req.Role),
	})
	if err != nil {
		log.Warn("user creation failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, profileDTO{
		User:    toUserDTO(user),
		Account: toAccountDTO(account),
	})
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, appErr := callerID(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	user, account, err := h.users.GetProfile(r.Context(), userID)
	if err != nil {
		logging.FromContext(r.Context()).Error("profile lookup failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, profileDTO{
		User:    toUserDTO(user),
		Account: toAccountDTO(account),
	})
}
