package controllers

import (
	"context"
	"encoding/json"
	"mime/multipart"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/Pariharx7/CivicTrack/middlewares"
	"github.com/Pariharx7/CivicTrack/models"
	"github.com/Pariharx7/CivicTrack/stores"
	"github.com/Pariharx7/CivicTrack/utils"
)

const requestTimeout = 10 * time.Second

var validate = validator.New()

// IssueStorer is the persistence surface the issue handlers depend on.
type IssueStorer interface {
	Create(ctx context.Context, issue *models.Issue) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	List(ctx context.Context, filter stores.IssueFilter, page, perPage int) ([]models.Issue, int64, error)
	ListNearby(ctx context.Context, lng, lat, radiusMeters float64) ([]models.Issue, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, newStatus models.IssueStatus, comment string, updatedBy primitive.ObjectID) (*models.Issue, error)
	Flag(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// IssueController handles all issue endpoints.
type IssueController struct {
	store    IssueStorer
	uploader utils.Uploader
	log      *zap.Logger
}

func NewIssueController(store IssueStorer, uploader utils.Uploader, log *zap.Logger) *IssueController {
	return &IssueController{store: store, uploader: uploader, log: log}
}

type locationInput struct {
	Lat *float64 `json:"lat" validate:"required"`
	Lng *float64 `json:"lng" validate:"required"`
}

// ReportIssue handles the creation of a new issue with up to three
// photos. Photo uploads are all-or-nothing: if any upload fails,
// nothing is persisted.
func (ic *IssueController) ReportIssue(c *gin.Context) {
	userID, _, ok := middlewares.SubjectFrom(c)
	if !ok {
		utils.RespondError(c, utils.NewUnauthenticatedError("User not authenticated"))
		return
	}
	reportedBy, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		utils.RespondError(c, utils.NewValidationError("Invalid user ID"))
		return
	}

	var input struct {
		Title       string `form:"title" binding:"required,max=200"`
		Description string `form:"description" binding:"required,max=2000"`
		Category    string `form:"category" binding:"required"`
		Location    string `form:"location" binding:"required"`
	}
	if err := c.ShouldBind(&input); err != nil {
		utils.RespondError(c, utils.NewValidationError("Title, description, category, and location are required"))
		return
	}

	category, ok := models.ParseCategory(input.Category)
	if !ok {
		utils.RespondError(c, utils.NewValidationError("Invalid category"))
		return
	}

	var loc locationInput
	if err := json.Unmarshal([]byte(input.Location), &loc); err != nil {
		utils.RespondError(c, utils.NewValidationError("Location must contain lat and lng"))
		return
	}
	if err := validate.Struct(loc); err != nil {
		utils.RespondError(c, utils.NewValidationError("Location must contain lat and lng"))
		return
	}

	point, err := models.NewGeoPoint(*loc.Lng, *loc.Lat)
	if err != nil {
		utils.RespondError(c, utils.NewValidationError(err.Error()))
		return
	}

	photos := photoHeaders(c)
	if len(photos) > models.MaxIssuePhotos {
		utils.RespondError(c, utils.NewValidationError("At most 3 photos are allowed"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	imageURLs, err := ic.uploadAll(ctx, photos)
	if err != nil {
		ic.log.Error("photo upload failed", zap.Error(err))
		utils.RespondError(c, utils.NewUploadError(err))
		return
	}

	issue := models.Issue{
		Title:       input.Title,
		Description: input.Description,
		Category:    category,
		Location:    point,
		ImageURLs:   imageURLs,
		ReportedBy:  reportedBy,
	}

	if err := ic.store.Create(ctx, &issue); err != nil {
		ic.log.Error("failed to create issue", zap.Error(err))
		utils.RespondError(c, err)
		return
	}

	utils.RespondCreated(c, "Issue reported successfully", issue)
}

// ListIssues returns a filtered, paginated listing, newest first. This
// endpoint is public and does not hide flagged issues; only the nearby
// query does.
func (ic *IssueController) ListIssues(c *gin.Context) {
	page, perPage := utils.ParsePageParams(c.Query("page"), c.Query("limit"))
	filter := stores.IssueFilter{
		Category: c.Query("category"),
		Status:   c.Query("status"),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	issues, total, err := ic.store.List(ctx, filter, page, perPage)
	if err != nil {
		ic.log.Error("failed to list issues", zap.Error(err))
		utils.RespondError(c, err)
		return
	}

	utils.RespondOK(c, "Issues fetched successfully", gin.H{
		"issues":     issues,
		"pagination": utils.NewPagination(total, page, perPage),
	})
}

// ListNearbyIssues returns unflagged issues within a radius of the
// caller's location. Radius defaults to 3 km.
func (ic *IssueController) ListNearbyIssues(c *gin.Context) {
	latRaw := c.Query("lat")
	lngRaw := c.Query("lng")
	if latRaw == "" || lngRaw == "" {
		utils.RespondError(c, utils.NewValidationError("Latitude and longitude are required"))
		return
	}

	lat, latErr := strconv.ParseFloat(latRaw, 64)
	lng, lngErr := strconv.ParseFloat(lngRaw, 64)
	if latErr != nil || lngErr != nil {
		utils.RespondError(c, utils.NewValidationError("Latitude and longitude must be numbers"))
		return
	}
	if _, err := models.NewGeoPoint(lng, lat); err != nil {
		utils.RespondError(c, utils.NewValidationError(err.Error()))
		return
	}

	radiusMeters := stores.DefaultNearbyRadiusMeters
	if radiusRaw := c.Query("radiusKm"); radiusRaw != "" {
		radiusKm, err := strconv.ParseFloat(radiusRaw, 64)
		if err != nil || radiusKm <= 0 {
			utils.RespondError(c, utils.NewValidationError("Radius must be a positive number"))
			return
		}
		radiusMeters = radiusKm * 1000
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	issues, err := ic.store.ListNearby(ctx, lng, lat, radiusMeters)
	if err != nil {
		ic.log.Error("failed to list nearby issues", zap.Error(err))
		utils.RespondError(c, err)
		return
	}

	utils.RespondOK(c, "Nearby civic issues fetched successfully", issues)
}

// GetIssueDetail retrieves an issue by its ID. Flagged issues remain
// visible here.
func (ic *IssueController) GetIssueDetail(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.RespondError(c, utils.NewValidationError("Invalid issue ID"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	issue, err := ic.store.GetByID(ctx, issueID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.RespondOK(c, "Issue details fetched successfully", issue)
}

// UpdateIssueStatus transitions an issue to a new status and appends an
// activity log entry. Any status is reachable from any other, and a
// no-op transition still logs.
func (ic *IssueController) UpdateIssueStatus(c *gin.Context) {
	userID, role, ok := middlewares.SubjectFrom(c)
	if !ok {
		utils.RespondError(c, utils.NewUnauthenticatedError("User not authenticated"))
		return
	}
	if role != models.RoleAdmin {
		utils.RespondError(c, utils.NewForbiddenError("Admin access required"))
		return
	}

	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.RespondError(c, utils.NewValidationError("Invalid issue ID"))
		return
	}

	updatedBy, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		utils.RespondError(c, utils.NewValidationError("Invalid user ID"))
		return
	}

	var input struct {
		Status  string `json:"status" binding:"required"`
		Comment string `json:"comment"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, utils.NewValidationError("Status is required"))
		return
	}

	status, ok := models.ParseStatus(input.Status)
	if !ok {
		utils.RespondError(c, utils.NewValidationError("Invalid status"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	issue, err := ic.store.UpdateStatus(ctx, issueID, status, input.Comment, updatedBy)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.RespondOK(c, "Issue updated successfully", issue)
}

// FlagIssue records one crowd-moderation flag against an issue. Three
// flags hide the issue from proximity search.
func (ic *IssueController) FlagIssue(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.RespondError(c, utils.NewValidationError("Invalid issue ID"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	issue, err := ic.store.Flag(ctx, issueID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.RespondOK(c, "Issue flagged successfully", issue)
}

// DeleteIssue removes an issue permanently.
func (ic *IssueController) DeleteIssue(c *gin.Context) {
	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.RespondError(c, utils.NewValidationError("Invalid issue ID"))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	if err := ic.store.Delete(ctx, issueID); err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.RespondOK(c, "Issue deleted successfully", gin.H{})
}

func photoHeaders(c *gin.Context) []*multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	return form.File["photos"]
}

// uploadAll relays each photo to object storage, preserving upload
// order. The first failure aborts the whole batch.
func (ic *IssueController) uploadAll(ctx context.Context, photos []*multipart.FileHeader) ([]string, error) {
	urls := make([]string, 0, len(photos))
	for _, header := range photos {
		file, err := header.Open()
		if err != nil {
			return nil, err
		}
		url, err := ic.uploader.Upload(ctx, file, header.Filename)
		file.Close()
		if err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, nil
}
