package server

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/network-extractor/constants"
	"github.com/joseph-ayodele/network-extractor/internal/common"
	"github.com/joseph-ayodele/network-extractor/internal/entity"
	"github.com/joseph-ayodele/network-extractor/internal/jobs"
)

// multipartOverhead is headroom for form boundaries and headers on top of the
// file size limit.
const multipartOverhead = 1 << 20

type JobHandler struct {
	svc            JobService
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewJobHandler(svc JobService, maxUploadBytes int64, logger *slog.Logger) *JobHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = constants.DefaultMaxUploadBytes
	}
	return &JobHandler{svc: svc, maxUploadBytes: maxUploadBytes, logger: logger}
}

// jobView is the public shape of a job.
type jobView struct {
	JobID            string              `json:"job_id"`
	Status           constants.JobStatus `json:"status"`
	ProgressNote     string              `json:"progress_note,omitempty"`
	DownloadURL      string              `json:"download_url,omitempty"`
	Error            string              `json:"error,omitempty"`
	OriginalFilename string              `json:"original_filename"`
	RecordCount      int                 `json:"record_count,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func toJobView(j *entity.Job) jobView {
	v := jobView{
		JobID:            j.ID,
		Status:           j.Status,
		ProgressNote:     j.ProgressNote,
		OriginalFilename: j.OriginalFilename,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
	}
	switch j.Status {
	case constants.JobStatusCompleted:
		v.DownloadURL = j.DownloadHandle
		v.RecordCount = j.RecordCount
	case constants.JobStatusFailed:
		v.Error = j.ErrorDetail
	}
	return v
}

func (h *JobHandler) CreateJob(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(c, common.ValidationError("file exceeds the upload size limit"))
			return
		}
		h.writeError(c, common.ValidationError("file is required"))
		return
	}
	if file.Size > h.maxUploadBytes {
		h.writeError(c, common.ValidationError("file exceeds the upload size limit"))
		return
	}

	data, err := readFormFile(file)
	if err != nil {
		h.writeError(c, common.ValidationError("could not read uploaded file"))
		return
	}

	job, err := h.svc.Submit(c.Request.Context(), jobs.Submission{
		Data:        data,
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Owner:       common.OwnerIDFromContext(c.Request.Context()),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": job.Status})
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeError(c, common.ValidationError("limit must be a positive integer"))
			return
		}
		limit = n
	}

	list, err := h.svc.ListJobs(c.Request.Context(), common.OwnerIDFromContext(c.Request.Context()), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]jobView, 0, len(list))
	for i := range list {
		out = append(out, toJobView(&list[i]))
	}
	c.JSON(http.StatusOK, gin.H{"jobs": out})
}

func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.svc.GetStatus(c.Request.Context(), c.Param("job_id"), common.OwnerIDFromContext(c.Request.Context()))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobView(job))
}

func (h *JobHandler) GetDownload(c *gin.Context) {
	url, err := h.svc.GetDownload(c.Request.Context(), c.Param("job_id"), common.OwnerIDFromContext(c.Request.Context()))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"download_url": url})
}

func (h *JobHandler) GetResult(c *gin.Context) {
	res, err := h.svc.GetResult(c.Request.Context(), c.Param("job_id"),
		common.OwnerIDFromContext(c.Request.Context()), c.DefaultQuery("format", "json"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+res.Filename+`"`)
	c.Data(http.StatusOK, res.ContentType, res.Body)
}

func (h *JobHandler) writeError(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("http.request.failed",
			"path", c.FullPath(),
			"request_id", common.RequestIDFromContext(c.Request.Context()),
			"error", err,
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": common.PublicMessage(err)})
}
