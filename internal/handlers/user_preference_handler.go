package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"coursemarket_echo/internal/middleware"
	"coursemarket_echo/internal/models"
)

type UserPreferenceHandler struct {
	DB *gorm.DB
}

func NewUserPreferenceHandler(db *gorm.DB) *UserPreferenceHandler {
	return &UserPreferenceHandler{DB: db}
}

func (h *UserPreferenceHandler) currentUser(c echo.Context) (*models.User, error) {
	var user models.User
	err := h.DB.WithContext(c.Request().Context()).Where("uid = ?", middleware.UserUID(c)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "User not found")
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserPreference returns the caller's notification preference, email when none is stored.
func (h *UserPreferenceHandler) GetUserPreference(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	var pref models.UserNotifPreference
	err = h.DB.WithContext(c.Request().Context()).Where("user_id = ?", user.ID).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Default values
		pref = models.UserNotifPreference{
			UserID:             user.ID,
			Channel:            models.NotificationChannelEmail,
			WhatsappTargetType: models.WhatsappTargetTypePersonal,
		}
	} else if err != nil {
		log.Printf("DB Error fetching preference for user %s: %v", user.ID, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Error fetching preference")
	}

	return c.JSON(http.StatusOK, pref)
}

// UpdateUserPreference upserts the caller's preference
func (h *UserPreferenceHandler) UpdateUserPreference(c echo.Context) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	var req NotificationPreferenceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.WhatsappTargetType == "" {
		req.WhatsappTargetType = models.WhatsappTargetTypePersonal
	}
	req.WhatsappGroupID = strings.TrimSpace(req.WhatsappGroupID)
	if req.Channel == string(models.NotificationChannelWhatsapp) && req.WhatsappTargetType == models.WhatsappTargetTypeGroup && req.WhatsappGroupID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "whatsapp_group_id is required for group delivery")
	}

	db := h.DB.WithContext(c.Request().Context())
	var pref models.UserNotifPreference
	err = db.Where("user_id = ?", user.ID).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		pref = models.UserNotifPreference{UserID: user.ID}
	} else if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Database error")
	}

	pref.Channel = models.NotificationChannel(req.Channel)
	pref.WhatsappTargetType = req.WhatsappTargetType
	pref.WhatsappGroupID = req.WhatsappGroupID

	if err := db.Save(&pref).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to save preference")
	}

	return c.JSON(http.StatusOK, pref)
}
