package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Context keys used to store authentication metadata.
const (
	ContextKeyUserID    = "user_id"
	ContextKeyUserEmail = "user_email"
	ContextKeyUserRole  = "user_role"
	ContextKeyRequestID = "request_id"
)

// UserIDFromContext returns the authenticated subject when it is a UUID.
// Tokens from the identity provider may carry other subject formats, in
// which case nil is returned.
func UserIDFromContext(c echo.Context) *uuid.UUID {
	subject, ok := c.Get(ContextKeyUserID).(string)
	if !ok || subject == "" {
		return nil
	}
	id, err := uuid.Parse(subject)
	if err != nil {
		return nil
	}
	return &id
}
