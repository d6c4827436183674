package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/botadmin/internal/api/dto"
	"github.com/spec-kit/botadmin/internal/auth"
	"github.com/spec-kit/botadmin/internal/domain"
	"github.com/spec-kit/botadmin/internal/service"
	apperrors "github.com/spec-kit/botadmin/pkg/util/errorutil"
)

// MiniAppHandler exposes the /mini-app endpoints.
type MiniAppHandler struct {
	miniApp *service.MiniAppService
}

// NewMiniAppHandler constructs handler.
func NewMiniAppHandler(miniApp *service.MiniAppService) *MiniAppHandler {
	return &MiniAppHandler{miniApp: miniApp}
}

// VerifyUser handles POST /mini-app/verify-user.
func (h *MiniAppHandler) VerifyUser(c *fiber.Ctx) error {
	var req dto.VerifyUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.miniApp.Verify(c.UserContext(), req.InitData)
	if err != nil {
		return err
	}

	resp := dto.VerifyUserResponse{Verified: result.Verified, Message: result.Message, Token: result.Token}
	if result.User != nil {
		data := telegramUserData(*result.User)
		resp.TelegramUserID = result.User.ID
		resp.UserData = &data
	}
	return c.JSON(resp)
}

// SearchUsers handles POST /mini-app/search-users.
func (h *MiniAppHandler) SearchUsers(c *fiber.Ctx) error {
	var req dto.SearchUsersRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	var callerID int64
	if principal, ok := auth.PrincipalFromContext(c); ok {
		callerID = principal.TelegramUserID
	}

	result, err := h.miniApp.Search(c.UserContext(), callerID, req.Query, req.Limit, req.Offset)
	if err != nil {
		return err
	}

	resp := dto.SearchUsersResponse{
		Results: make([]dto.TelegramUserData, 0, len(result.Users)),
		Total:   result.Total,
		Limit:   result.Limit,
		Offset:  result.Offset,
	}
	for _, user := range result.Users {
		resp.Results = append(resp.Results, telegramUserData(user))
	}
	return c.JSON(resp)
}

// UserPhoto handles GET /mini-app/user-photo/:id by redirecting to the stored avatar.
func (h *MiniAppHandler) UserPhoto(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return apperrors.NewValidationError("invalid user id", map[string]any{"id": c.Params("id")})
	}

	photo, err := h.miniApp.PhotoURL(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.Redirect(photo, fiber.StatusFound)
}

func telegramUserData(user domain.TelegramUser) dto.TelegramUserData {
	return dto.TelegramUserData{
		ID:           user.ID,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Username:     user.Username,
		LanguageCode: user.LanguageCode,
		IsPremium:    user.IsPremium,
		PhotoURL:     user.PhotoURL,
	}
}
