package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"leafmart.dev/catalog/internal/catalog"
	"leafmart.dev/catalog/internal/db"
	"leafmart.dev/catalog/internal/review"
)

type flagItem struct {
	FlagUUID           string          `json:"flag_uuid"`
	Kind               db.FlagKind     `json:"kind"`
	Status             db.FlagStatus   `json:"status"`
	ConfidenceScore    *float64        `json:"confidence_score,omitempty"`
	MatchScope         *db.MatchScope  `json:"match_scope,omitempty"`
	TargetProductID    *int64          `json:"target_product_id,omitempty"`
	DuplicateProductID *int64          `json:"duplicate_product_id,omitempty"`
	IssueTags          []string        `json:"issue_tags,omitempty"`
	Snapshot           json.RawMessage `json:"snapshot,omitempty"`
	Notes              *string         `json:"notes,omitempty"`
	ResolvedBy         *string         `json:"resolved_by,omitempty"`
	ResolvedAt         *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

func buildFlagItem(flag db.ReviewFlag) flagItem {
	item := flagItem{
		FlagUUID:           flag.FlagUUID,
		Kind:               flag.Kind,
		Status:             flag.Status,
		ConfidenceScore:    flag.ConfidenceScore,
		MatchScope:         flag.MatchScope,
		TargetProductID:    flag.TargetProductID,
		DuplicateProductID: flag.DuplicateProductID,
		Snapshot:           flag.Snapshot,
		Notes:              flag.Notes,
		ResolvedBy:         flag.ResolvedBy,
		ResolvedAt:         flag.ResolvedAt,
		CreatedAt:          flag.CreatedAt,
	}
	if len(flag.IssueTags) > 0 {
		_ = json.Unmarshal(flag.IssueTags, &item.IssueTags)
	}
	return item
}

var (
	validFlagKinds = map[string]struct{}{
		string(db.FlagKindMatchReview): {},
		string(db.FlagKindDataCleanup): {},
	}
	validFlagStatuses = map[string]struct{}{
		string(db.FlagStatusPending):    {},
		string(db.FlagStatusApproved):   {},
		string(db.FlagStatusRejected):   {},
		string(db.FlagStatusDismissed):  {},
		string(db.FlagStatusCleaned):    {},
		string(db.FlagStatusAutoMerged): {},
		string(db.FlagStatusMerged):     {},
	}
)

func (s *Server) handleFlagList(c echo.Context) error {
	page, err := parsePositiveInt(c.QueryParam("page"), 1, 1, 1_000_000)
	if err != nil {
		return failValidation(c, map[string]string{"page": err.Error()})
	}
	pageSize, err := parsePositiveInt(c.QueryParam("page_size"), defaultPageSize, 1, maxPageSize)
	if err != nil {
		return failValidation(c, map[string]string{"page_size": err.Error()})
	}

	kind := strings.TrimSpace(strings.ToLower(c.QueryParam("kind")))
	if kind != "" {
		if _, ok := validFlagKinds[kind]; !ok {
			return failValidation(c, map[string]string{"kind": "is not a known flag kind"})
		}
	}
	status := strings.TrimSpace(strings.ToLower(c.QueryParam("status")))
	if status != "" {
		if _, ok := validFlagStatuses[status]; !ok {
			return failValidation(c, map[string]string{"status": "is not a known flag status"})
		}
	}

	flags, total, err := s.store.ListFlags(c.Request().Context(), db.FlagFilter{
		Kind:     kind,
		Status:   status,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("query flags failed")
		return internalError(c, "Failed to load flags")
	}

	items := make([]flagItem, 0, len(flags))
	for _, flag := range flags {
		items = append(items, buildFlagItem(flag))
	}

	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}

	return success(c, map[string]any{
		"items": items,
		"pagination": map[string]any{
			"page":        page,
			"page_size":   pageSize,
			"total_items": total,
			"total_pages": totalPages,
		},
		"filters": map[string]any{
			"kind":   kind,
			"status": status,
		},
	})
}

func (s *Server) handleFlagDetail(c echo.Context) error {
	flagUUID := strings.TrimSpace(c.Param("flag_uuid"))
	if flagUUID == "" {
		return failValidation(c, map[string]string{"flag_uuid": "is required"})
	}

	flag, err := s.store.FlagByUUID(c.Request().Context(), flagUUID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return failNotFound(c, "Flag not found")
		}
		s.logger.Error().Err(err).Str("flag_uuid", flagUUID).Msg("query flag failed")
		return internalError(c, "Failed to load flag")
	}
	return success(c, buildFlagItem(*flag))
}

// flagActionRequest is the shared body for the operator endpoints.
// Edits only matter on approve, reject, and clean; kept_product_id
// only on merge-duplicate.
type flagActionRequest struct {
	ResolvedBy    string             `json:"resolved_by"`
	Notes         string             `json:"notes"`
	Edits         *review.FieldEdits `json:"edits"`
	KeptProductID *int64             `json:"kept_product_id"`
}

func (r *flagActionRequest) edits() review.FieldEdits {
	if r.Edits == nil {
		return review.FieldEdits{}
	}
	return *r.Edits
}

func decodeFlagAction(c echo.Context) (*flagActionRequest, string, error) {
	flagUUID := strings.TrimSpace(c.Param("flag_uuid"))
	if flagUUID == "" {
		return nil, "", fmt.Errorf("flag_uuid is required")
	}

	req := &flagActionRequest{}
	decoder := json.NewDecoder(c.Request().Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(req); err != nil && !errors.Is(err, io.EOF) {
		return nil, "", fmt.Errorf("invalid JSON body: %v", err)
	}
	return req, flagUUID, nil
}

// flagOpError maps manager errors onto the API contract: conflicts
// are 409, bad input is 400, a missing flag or product is 404.
func (s *Server) flagOpError(c echo.Context, flagUUID string, err error) error {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return failNotFound(c, err.Error())
	case errors.Is(err, catalog.ErrConflict):
		return failConflict(c, err.Error())
	case errors.Is(err, catalog.ErrInput), errors.Is(err, catalog.ErrIntegrity):
		return failValidation(c, map[string]string{"flag": err.Error()})
	default:
		s.logger.Error().Err(err).Str("flag_uuid", flagUUID).Msg("flag operation failed")
		return internalError(c, "Flag operation failed")
	}
}

func (s *Server) handleApprove(c echo.Context) error {
	req, flagUUID, err := decodeFlagAction(c)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	result, err := s.manager.Approve(c.Request().Context(), flagUUID, req.edits(), req.ResolvedBy, req.Notes)
	if err != nil {
		return s.flagOpError(c, flagUUID, err)
	}
	return success(c, result)
}

func (s *Server) handleReject(c echo.Context) error {
	req, flagUUID, err := decodeFlagAction(c)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	result, err := s.manager.Reject(c.Request().Context(), flagUUID, req.edits(), req.ResolvedBy, req.Notes)
	if err != nil {
		return s.flagOpError(c, flagUUID, err)
	}
	return success(c, result)
}

func (s *Server) handleDismiss(c echo.Context) error {
	req, flagUUID, err := decodeFlagAction(c)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	result, err := s.manager.Dismiss(c.Request().Context(), flagUUID, req.ResolvedBy, req.Notes)
	if err != nil {
		return s.flagOpError(c, flagUUID, err)
	}
	return success(c, result)
}

func (s *Server) handleClean(c echo.Context) error {
	req, flagUUID, err := decodeFlagAction(c)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	result, err := s.manager.CleanAndActivate(c.Request().Context(), flagUUID, req.edits(), req.ResolvedBy, req.Notes)
	if err != nil {
		return s.flagOpError(c, flagUUID, err)
	}
	return success(c, result)
}

func (s *Server) handleDeleteProduct(c echo.Context) error {
	req, flagUUID, err := decodeFlagAction(c)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	result, err := s.manager.DeleteFlaggedProduct(c.Request().Context(), flagUUID, req.ResolvedBy, req.Notes)
	if err != nil {
		return s.flagOpError(c, flagUUID, err)
	}
	return success(c, result)
}

func (s *Server) handleMergeDuplicate(c echo.Context) error {
	req, flagUUID, err := decodeFlagAction(c)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	if req.KeptProductID == nil {
		return failValidation(c, map[string]string{"kept_product_id": "is required"})
	}
	result, err := s.manager.MergeDuplicate(c.Request().Context(), flagUUID, *req.KeptProductID, req.ResolvedBy, req.Notes)
	if err != nil {
		return s.flagOpError(c, flagUUID, err)
	}
	return success(c, result)
}

func (s *Server) handleRejectAutoMerge(c echo.Context) error {
	req, flagUUID, err := decodeFlagAction(c)
	if err != nil {
		return failValidation(c, map[string]string{"body": err.Error()})
	}
	result, err := s.manager.RejectAutoMerge(c.Request().Context(), flagUUID, req.ResolvedBy, req.Notes)
	if err != nil {
		return s.flagOpError(c, flagUUID, err)
	}
	return success(c, result)
}
