package main

import (
	"errors"
	"log"
	"net/http"

	"xlsviz/pkg/access"
	"xlsviz/pkg/analysis"
	"xlsviz/pkg/identity"
	"xlsviz/pkg/ingest"
	"xlsviz/pkg/sheet"
	"xlsviz/pkg/store"

	"github.com/gin-gonic/gin"
)

type errorMapping struct {
	target  error
	status  int
	message string
}

// errorMappings is checked in order; an empty message means err.Error() is shown.
var errorMappings = []errorMapping{
	{identity.ErrMissingToken, http.StatusUnauthorized, "No token provided"},
	{identity.ErrInvalidToken, http.StatusUnauthorized, "Invalid token"},
	{identity.ErrExpiredToken, http.StatusUnauthorized, "Token expired"},
	{ErrInvalidCredentials, http.StatusUnauthorized, ""},
	{ErrInvalidRefreshToken, http.StatusUnauthorized, ""},
	{ErrUserNotFound, http.StatusUnauthorized, "User not found"},
	{access.ErrAccessDenied, http.StatusForbidden, "Access denied"},
	{store.ErrNotFound, http.StatusNotFound, "File not found"},
	{ingest.ErrMissingFile, http.StatusBadRequest, "No file uploaded"},
	{ingest.ErrNotExcel, http.StatusBadRequest, ""},
	{ingest.ErrFileTooLarge, http.StatusRequestEntityTooLarge, ""},
	{sheet.ErrEmptyDocument, http.StatusBadRequest, "Excel file is empty"},
	{sheet.ErrMalformedDocument, http.StatusBadRequest, "Could not read Excel file"},
	{analysis.ErrMissingField, http.StatusBadRequest, ""},
	{analysis.ErrInvalidChartType, http.StatusBadRequest, "Invalid chart type"},
	{analysis.ErrInvalidAxis, http.StatusBadRequest, "Selected axes must exist in file columns"},
	{ErrEmailRequired, http.StatusBadRequest, ""},
	{ErrPasswordTooShort, http.StatusBadRequest, ""},
	{ErrUserExists, http.StatusConflict, ""},
}

// respondError writes the HTTP form of err and aborts the request.
// Unrecognised errors are logged and reported without detail.
func respondError(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = m.target.Error()
			}
			c.AbortWithStatusJSON(m.status, gin.H{"error": msg})
			return
		}
	}
	log.Printf("error: %s %s: %v", c.Request.Method, c.FullPath(), err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
}
