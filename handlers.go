package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/plantpulse/pulse_backend/alerts"
	"github.com/plantpulse/pulse_backend/config"
	"github.com/plantpulse/pulse_backend/insights"
	"github.com/plantpulse/pulse_backend/middlewares"
	"github.com/plantpulse/pulse_backend/models"
	"github.com/plantpulse/pulse_backend/poller"
	"github.com/plantpulse/pulse_backend/reports"
	"github.com/plantpulse/pulse_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxPhotoSizeBytes int64 = 5 * 1024 * 1024

var photoMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// requireSession admits a request carrying either a redis session token or a
// validated JWT claim. Both middlewares run before the /api group.
func requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if username, ok := utils.GetUsernameFromContext(c.Request.Context()); ok && username != "" {
			c.Next()
			return
		}
		if middlewares.CtxValue(c.Request.Context()) != nil {
			c.Next()
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		c.Abort()
	}
}

// authorizeAdminOnly accepts an admin JWT claim directly; a session caller is
// resolved through the redis user cache, falling back to the users table.
func authorizeAdminOnly(ctx context.Context) error {
	if claim := middlewares.CtxValue(ctx); claim != nil {
		if claim.Role == string(models.UserRoleAdmin) {
			return nil
		}
		return errors.New("unauthorized")
	}

	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return errors.New("unauthorized")
	}

	var user models.User
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return err
	}
	if !exists {
		db := config.GetDB()
		if db == nil {
			return errors.New("db is nil")
		}
		if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Take(&user).Error; err != nil {
			return errors.New("unauthorized")
		}
	}
	if user.Role != models.UserRoleAdmin {
		return errors.New("unauthorized")
	}
	return nil
}

func sessionTokenLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
			return
		}

		var user models.User
		db := config.GetDB()
		if err := db.WithContext(c.Request.Context()).
			Where("username = ? AND is_active = ?", req.Username, true).
			Take(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if err := utils.ComparePassword(user.Password, req.Password); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		token := uuid.New().String()
		if err := config.SetRedisValue("Token:"+token, user.Username, sessionTokenLifespan()); err != nil {
			config.LogError(logger, "handlers.go", "loginHandler", "SetRedisValue", user.Username, err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
			return
		}
		if err := user.CacheInstanceRedis(); err != nil {
			logger.WithFields(logrus.Fields{
				"field":    "loginHandler",
				"username": user.Username,
			}).Warn("failed to cache user: " + err.Error())
		}

		jwtToken, err := utils.JwtGenerate(user.ID, string(user.Role))
		if err != nil {
			config.LogError(logger, "handlers.go", "loginHandler", "JwtGenerate", user.Username, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"jwt":   jwtToken,
			"user":  user,
		})
	}
}

// dayFromString parses a YYYY-MM-DD date; an empty value means today (UTC).
func dayFromString(value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	day, err := time.Parse("2006-01-02", strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD")
	}
	return day.UTC(), nil
}

func schedulerStatusHandler(scheduler func() *poller.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := scheduler()
		if s == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheduler not started"})
			return
		}
		c.JSON(http.StatusOK, s.Status())
	}
}

func dailyActionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		day, err := dayFromString(c.Query("date"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		engine := insights.NewEngine(config.GetLogger())
		items, err := engine.DailyActions(c.Request.Context(), day)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build actions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"date":    day.Format("2006-01-02"),
			"actions": items,
		})
	}
}

func dailySummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		day, err := dayFromString(c.Param("date"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		regenerate := strings.EqualFold(c.Query("regenerate"), "true")

		generator := insights.NewGenerator(config.GetLogger())
		result, err := generator.DailySummary(c.Request.Context(), day, regenerate)
		if err != nil {
			if errors.Is(err, insights.ErrNoSourceData) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no data for requested date"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build summary"})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

type assetView struct {
	models.Asset
	HourlyRate    *decimal.Decimal `json:"hourly_rate,omitempty"`
	RateEstimated bool             `json:"rate_estimated"`
}

func listAssetsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		assets, err := models.GetActiveAssets(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load assets"})
			return
		}

		views := make([]assetView, 0, len(assets))
		for _, asset := range assets {
			view := assetView{Asset: asset, RateEstimated: true}
			cc, err := middlewares.GetCostCenterForAsset(c.Request.Context(), asset.ID)
			if err == nil && cc != nil {
				rate := cc.HourlyRate
				view.HourlyRate = &rate
				view.RateEstimated = false
			}
			views = append(views, view)
		}
		c.JSON(http.StatusOK, gin.H{"assets": views})
	}
}

type assetRequest struct {
	ID              int             `json:"id"`
	Code            string          `json:"code" binding:"required"`
	Name            string          `json:"name" binding:"required"`
	Line            string          `json:"line"`
	TargetOEE       decimal.Decimal `json:"target_oee"`
	SupervisorName  string          `json:"supervisor_name"`
	SupervisorPhone string          `json:"supervisor_phone"`
	CountryCode     string          `json:"country_code"`
	IsActive        *bool           `json:"is_active"`
}

func upsertAssetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req assetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			if verrs, ok := err.(validator.ValidationErrors); ok {
				c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(verrs)})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		phone := strings.TrimSpace(req.SupervisorPhone)
		if phone != "" {
			normalized, err := utils.NormalizePhoneNumber(phone, req.CountryCode)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "supervisor_phone is not a valid phone number"})
				return
			}
			phone = normalized
		}

		isActive := req.IsActive
		if isActive == nil {
			isActive = utils.NewTrue()
		}
		asset := models.Asset{
			ID:              req.ID,
			Code:            req.Code,
			Name:            req.Name,
			Line:            req.Line,
			TargetOEE:       req.TargetOEE,
			SupervisorName:  req.SupervisorName,
			SupervisorPhone: phone,
			IsActive:        isActive,
		}

		db := config.GetDB()
		ctx := c.Request.Context()
		if asset.ID > 0 {
			err := db.WithContext(ctx).Model(&models.Asset{}).
				Where("id = ?", asset.ID).
				Updates(map[string]interface{}{
					"code":             asset.Code,
					"name":             asset.Name,
					"line":             asset.Line,
					"target_oee":       asset.TargetOEE,
					"supervisor_name":  asset.SupervisorName,
					"supervisor_phone": asset.SupervisorPhone,
					"is_active":        asset.IsActive,
				}).Error
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"asset": asset})
			return
		}

		if err := db.WithContext(ctx).Create(&asset).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"asset": asset})
	}
}

// assetPhotoHandler accepts a multipart photo, stores the original plus a
// 200px-wide thumbnail in GCS, and saves both URLs on the asset row.
func assetPhotoHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		assetID, err := strconv.Atoi(c.Param("id"))
		if err != nil || assetID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
			return
		}

		db := config.GetDB()
		ctx := c.Request.Context()
		var asset models.Asset
		if err := db.WithContext(ctx).Where("id = ?", assetID).Take(&asset).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
			return
		}

		fileHeader, err := c.FormFile("photo")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
			return
		}
		if fileHeader.Size > maxPhotoSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}
		contentType := fileHeader.Header.Get("Content-Type")
		if !photoMimeTypes[contentType] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read photo"})
			return
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxPhotoSizeBytes+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read photo"})
			return
		}
		if int64(len(data)) > maxPhotoSizeBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
			return
		}

		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file is not a valid image"})
			return
		}

		ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
		if ext == "" {
			if contentType == "image/png" {
				ext = ".png"
			} else {
				ext = ".jpg"
			}
		}
		unique := utils.GenerateUniqueFilename()
		objectKey := fmt.Sprintf("assets/%d/%s%s", asset.ID, unique, ext)
		thumbnailKey := fmt.Sprintf("assets/%d/thumbnails/%s.jpg", asset.ID, unique)

		if err := utils.UploadBytesToGCS(ctx, objectKey, data, contentType); err != nil {
			config.LogError(logger, "handlers.go", "assetPhotoHandler", "UploadBytesToGCS", objectKey, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store photo"})
			return
		}

		thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate thumbnail"})
			return
		}
		if err := utils.UploadBytesToGCS(ctx, thumbnailKey, buf.Bytes(), "image/jpeg"); err != nil {
			config.LogError(logger, "handlers.go", "assetPhotoHandler", "UploadBytesToGCS thumbnail", thumbnailKey, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store thumbnail"})
			return
		}

		photoURL := utils.PublicObjectURL(objectKey)
		thumbnailURL := utils.PublicObjectURL(thumbnailKey)
		if err := db.WithContext(ctx).Model(&models.Asset{}).
			Where("id = ?", asset.ID).
			Updates(map[string]interface{}{
				"photo_url":     photoURL,
				"thumbnail_url": thumbnailURL,
			}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save photo urls"})
			return
		}

		logger.WithFields(logrus.Fields{
			"field":      "assetPhotoHandler",
			"asset_id":   asset.ID,
			"object_key": objectKey,
		}).Info("asset photo stored")

		c.JSON(http.StatusOK, gin.H{
			"photo_url":     photoURL,
			"thumbnail_url": thumbnailURL,
		})
	}
}

type safetyEventView struct {
	models.SafetyEvent
	SupervisorName  string `json:"supervisor_name,omitempty"`
	SupervisorPhone string `json:"supervisor_phone,omitempty"`
}

func listSafetyEventsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var events []models.SafetyEvent
		var err error
		if dateParam := c.Query("date"); dateParam != "" {
			var day time.Time
			day, err = dayFromString(dateParam)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			events, err = models.SafetyEventsOn(ctx, day)
		} else {
			events, err = models.UnresolvedSafetyEvents(ctx)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load safety events"})
			return
		}

		views := make([]safetyEventView, 0, len(events))
		for _, event := range events {
			view := safetyEventView{SafetyEvent: event}
			if asset, err := middlewares.GetAsset(ctx, event.AssetID); err == nil && asset != nil {
				view.SupervisorName = asset.SupervisorName
				view.SupervisorPhone = asset.SupervisorPhone
			}
			views = append(views, view)
		}
		c.JSON(http.StatusOK, gin.H{"safety_events": views})
	}
}

func acknowledgeSafetyEventHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
			return
		}

		ctx := c.Request.Context()
		reviewer, _ := utils.GetUsernameFromContext(ctx)
		if reviewer == "" {
			if claim := middlewares.CtxValue(ctx); claim != nil {
				reviewer = "user:" + strconv.Itoa(claim.ID)
			}
		}

		db := config.GetDB()
		var event models.SafetyEvent
		if err := db.WithContext(ctx).Where("id = ?", id).Take(&event).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "safety event not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load safety event"})
			return
		}

		if err := models.AcknowledgeSafetyEvent(ctx, id, reviewer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to acknowledge"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id, "acknowledged_by": reviewer})
	}
}

func dailyPerformanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		day, err := dayFromString(c.Query("date"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		report, err := reports.GetDailyPerformanceReport(c.Request.Context(), day)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build report"})
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

// exportDailyPerformanceHandler streams an xlsx workbook by default;
// ?upload=true stores it in GCS and returns a public URL instead.
func exportDailyPerformanceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		day, err := dayFromString(c.Query("date"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		report, err := reports.GetDailyPerformanceReport(c.Request.Context(), day)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build report"})
			return
		}

		if strings.EqualFold(c.Query("upload"), "true") {
			url, err := reports.ExportDailyPerformanceToGCS(c.Request.Context(), report)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload report"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"url": url})
			return
		}

		buf, err := reports.BuildDailyPerformanceWorkbook(report)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render workbook"})
			return
		}
		filename := fmt.Sprintf("daily-performance-%s.xlsx", report.Date)
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			buf.Bytes())
	}
}

type alertReplayRequest struct {
	Ids []int `json:"ids" binding:"required"`
}

func alertReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authorizeAdminOnly(c.Request.Context()); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req alertReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil || len(req.Ids) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ids are required"})
			return
		}

		requeued, err := alerts.ReplayDead(c.Request.Context(), config.GetDB(), req.Ids)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"requested": len(req.Ids),
			"requeued":  requeued,
		})
	}
}
