package salesfile

import (
	"encoding/json"
	"io"
	"net/http"

	"salescamp-controlplane/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the sales-file upload endpoint.
func RegisterRoutes(engine *gin.Engine, svc *Service) {
	engine.POST("/v1/campaigns/:campaign_id/sales-files", uploadSalesFile(svc))
}

func uploadSalesFile(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		params := UploadParams{CampaignID: c.Param("campaign_id")}

		file, err := c.FormFile("file")
		if err != nil {
			c.Error(errutil.BadRequest("sales file is required", errutil.WithErr(err)))
			return
		}
		params.FileName = file.Filename

		src, err := file.Open()
		if err != nil {
			c.Error(errutil.BadRequest("failed to open uploaded file", errutil.WithErr(err)))
			return
		}
		defer src.Close()

		content, err := io.ReadAll(io.LimitReader(src, maxSalesFileSize+1))
		if err != nil {
			c.Error(errutil.BadRequest("failed to read uploaded file", errutil.WithErr(err)))
			return
		}
		params.Content = content

		// Spreadsheet uploads attach the rows the front-end already parsed.
		if rowsPayload := c.PostForm("rows"); rowsPayload != "" {
			if err := json.Unmarshal([]byte(rowsPayload), &params.Rows); err != nil {
				c.Error(errutil.BadRequest("rows payload is malformed", errutil.WithErr(err)))
				return
			}
		}

		report, err := svc.ProcessUpload(c.Request.Context(), params)
		if err != nil {
			c.Error(err)
			return
		}

		c.JSON(http.StatusOK, report)
	}
}
