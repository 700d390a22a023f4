package server

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dokubo/veriseal/internal/logging"
	"github.com/dokubo/veriseal/internal/pagination"
	"github.com/dokubo/veriseal/internal/submission"
	"github.com/dokubo/veriseal/internal/trend"
	"github.com/dokubo/veriseal/internal/validation"
	"github.com/dokubo/veriseal/internal/verdict"
	"github.com/dokubo/veriseal/internal/verify"
)

// createVerification handles POST /v1/verifications
func (s *Server) createVerification(c *gin.Context) {
	ctx := c.Request.Context()

	// ocrText may be empty: a receipt that yields no text still gets a
	// verdict from the comparison against the seal.
	var req struct {
		AccountOwnerRef string    `json:"accountOwnerRef" binding:"required"`
		OCRText         string    `json:"ocrText"`
		QRPayload       string    `json:"qrPayload"` // base64
		CapturedAt      time.Time `json:"capturedAt"`
		DeviceID        string    `json:"deviceId"`
		SessionID       string    `json:"sessionId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.ValidOwnerRef("accountOwnerRef", req.AccountOwnerRef),
		validation.MaxLength("ocrText", req.OCRText, validation.MaxOCRTextLength),
		validation.MaxLength("deviceId", req.DeviceID, 256),
		validation.MaxLength("sessionId", req.SessionID, 256),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"details": errs,
		})
		return
	}

	var qrPayload []byte
	if req.QRPayload != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.QRPayload)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_qr_payload",
				"message": "qrPayload must be base64",
			})
			return
		}
		qrPayload = decoded
	}

	outcome, err := s.verifier.Verify(ctx, &verify.Request{
		AccountOwnerRef: req.AccountOwnerRef,
		OCRText:         req.OCRText,
		QRPayload:       qrPayload,
		CapturedAt:      req.CapturedAt,
		DeviceID:        req.DeviceID,
		SessionID:       req.SessionID,
	})
	if err != nil {
		logging.L(ctx).Error("verification failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to process verification",
		})
		return
	}

	// Stream the verdict to subscribed dashboards and webhooks
	s.realtimeHub.BroadcastVerdict(req.AccountOwnerRef, outcome.Result)
	s.emitter.EmitVerdict(req.AccountOwnerRef, outcome.Result)

	c.JSON(http.StatusCreated, gin.H{
		"submissionId": outcome.Submission.ID,
		"verdict":      outcome.Result.Verdict,
		"score":        outcome.Result.Score,
		"comparisons":  outcome.Result.Comparisons,
		"qrStatus":     outcome.QRStatus,
		"qrError":      outcome.QRError,
		"trend": gin.H{
			"recorded": outcome.TrendRecorded,
			"warning":  outcome.TrendWarning,
			"error":    outcome.TrendError,
		},
		"decidedAt": outcome.Result.DecidedAt,
	})
}

// getVerification handles GET /v1/verifications/:id
func (s *Server) getVerification(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	sub, result, err := s.verifier.Lookup(ctx, id)
	if err != nil {
		if errors.Is(err, submission.ErrSubmissionNotFound) || errors.Is(err, submission.ErrResultNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No verification with that ID",
			})
			return
		}
		logging.L(ctx).Error("lookup failed", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load verification",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submission": sub,
		"result":     result,
	})
}

// listOwnerVerifications handles GET /v1/accounts/:ownerRef/verifications
func (s *Server) listOwnerVerifications(c *gin.Context) {
	ctx := c.Request.Context()
	ownerRef := c.Param("ownerRef")
	limit := parseLimit(c.Query("limit"), s.cfg.HistoryCap)

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "Cursor is malformed",
		})
		return
	}
	var before time.Time
	if cursor != nil {
		before = cursor.At
	}

	results, err := s.verifier.History(ctx, ownerRef, before, limit+1)
	if err != nil {
		logging.L(ctx).Error("history query failed", "ownerRef", ownerRef, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load verification history",
		})
		return
	}

	page, next, more := pagination.ComputePage(results, limit, func(r *verdict.Result) (time.Time, string) {
		return r.DecidedAt, r.SubmissionID
	})

	c.JSON(http.StatusOK, gin.H{
		"ownerRef":   ownerRef,
		"results":    page,
		"count":      len(page),
		"nextCursor": next,
		"hasMore":    more,
	})
}

// listSignatures handles GET /v1/signatures
func (s *Server) listSignatures(c *gin.Context) {
	ctx := c.Request.Context()
	limit := parseLimit(c.Query("limit"), 50)

	records, err := s.trendStore.List(ctx, limit)
	if err != nil {
		logging.L(ctx).Error("signature list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load signature index",
		})
		return
	}

	if warnedParam := c.Query("warned"); warnedParam != "" {
		want := warnedParam == "true"
		filtered := records[:0]
		for _, rec := range records {
			if rec.Warned == want {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	// Occurrence detail stays internal; the list view is aggregate only.
	for _, rec := range records {
		rec.Occurrences = nil
	}

	c.JSON(http.StatusOK, gin.H{
		"signatures": records,
		"count":      len(records),
	})
}

// getSignature handles GET /v1/signatures/:fingerprint
func (s *Server) getSignature(c *gin.Context) {
	ctx := c.Request.Context()
	fp := c.Param("fingerprint")

	if !validation.IsValidFingerprint(fp) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_fingerprint",
			"message": "fingerprint must be 64 lowercase hex characters",
		})
		return
	}

	rec, err := s.trendStore.Get(ctx, fp)
	if err != nil {
		if errors.Is(err, trend.ErrSignatureNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No signature with that fingerprint",
			})
			return
		}
		logging.L(ctx).Error("signature lookup failed", "fingerprint", fp, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load signature",
		})
		return
	}

	c.JSON(http.StatusOK, rec)
}

func parseLimit(raw string, def int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > def {
		return def
	}
	return n
}
