package rule

import (
	"io"
	"net/http"
	"time"

	"salescamp-controlplane/pkg/errutil"

	"github.com/gin-gonic/gin"
)

type ruleResponse struct {
	RuleID           string     `json:"rule_id"`
	CampaignID       string     `json:"campaign_id"`
	CampaignName     string     `json:"campaign_name"`
	FileName         string     `json:"file_name,omitempty"`
	MimeType         string     `json:"mime_type,omitempty"`
	Status           Status     `json:"status"`
	StructuredRule   any        `json:"structured_rule,omitempty"`
	ProcessedSummary string     `json:"processed_summary,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	RetryCount       int        `json:"retry_count"`
	LastRetryAt      *time.Time `json:"last_retry_at,omitempty"`
	IsCorrection     bool       `json:"is_correction"`
	CreatedAt        time.Time  `json:"created_at"`
}

func toResponse(rec *RuleRecord) ruleResponse {
	resp := ruleResponse{
		RuleID:           rec.RuleID,
		CampaignID:       rec.CampaignID,
		CampaignName:     rec.CampaignName,
		FileName:         rec.FileName,
		MimeType:         rec.MimeType,
		Status:           rec.Status,
		ProcessedSummary: rec.ProcessedSummary,
		ErrorMessage:     rec.ErrorMessage,
		RetryCount:       rec.RetryCount,
		LastRetryAt:      rec.LastRetryAt,
		IsCorrection:     rec.IsCorrection,
		CreatedAt:        rec.CreatedAt,
	}
	if len(rec.StructuredRule) > 0 {
		resp.StructuredRule = rec.StructuredRule
	}
	return resp
}

type submitBody struct {
	CampaignName string `json:"campaign_name"`
	RawText      string `json:"raw_text"`
}

// RegisterRoutes mounts the rule lifecycle endpoints.
func RegisterRoutes(engine *gin.Engine, svc *Service) {
	engine.POST("/v1/campaigns/:campaign_id/rules", submitRule(svc))
	engine.GET("/v1/campaigns/:campaign_id/rules/active", getActiveRule(svc))
	engine.POST("/v1/rules/:rule_id/retry", retryRule(svc))
	engine.DELETE("/v1/rules/:rule_id", deleteRule(svc))
}

func submitRule(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		campaignID := c.Param("campaign_id")

		params := SubmitParams{CampaignID: campaignID}

		if file, err := c.FormFile("file"); err == nil {
			src, err := file.Open()
			if err != nil {
				c.Error(errutil.BadRequest("failed to open uploaded file", errutil.WithErr(err)))
				return
			}
			defer src.Close()

			content, err := io.ReadAll(io.LimitReader(src, maxDocumentSize+1))
			if err != nil {
				c.Error(errutil.BadRequest("failed to read uploaded file", errutil.WithErr(err)))
				return
			}

			params.FileName = file.Filename
			params.MimeType = file.Header.Get("Content-Type")
			params.Content = content
			params.CampaignName = c.PostForm("campaign_name")
		} else {
			var body submitBody
			if err := c.ShouldBindJSON(&body); err != nil {
				c.Error(errutil.BadRequest("request carries neither a file nor a rule text", errutil.WithErr(err)))
				return
			}
			params.CampaignName = body.CampaignName
			params.RawText = body.RawText
		}

		// A submission supersedes any completed rule the campaign already has.
		active, err := svc.GetActiveRule(c.Request.Context(), campaignID)
		if err != nil {
			c.Error(err)
			return
		}
		params.IsCorrection = active != nil && active.Status == StatusCompleted

		rec, err := svc.Submit(c.Request.Context(), params)
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusCreated, toResponse(rec))
	}
}

func getActiveRule(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := svc.GetActiveRule(c.Request.Context(), c.Param("campaign_id"))
		if err != nil {
			c.Error(err)
			return
		}
		if rec == nil {
			c.Error(errutil.NotFound("campaign has no active rule"))
			return
		}
		c.JSON(http.StatusOK, toResponse(rec))
	}
}

func retryRule(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := svc.Retry(c.Request.Context(), c.Param("rule_id"))
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, toResponse(rec))
	}
}

func deleteRule(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := svc.repo.GetByID(c.Request.Context(), c.Param("rule_id"))
		if err != nil {
			c.Error(errutil.NotFound("rule record not found"))
			return
		}
		if err := svc.DeleteRule(c.Request.Context(), rec); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}
