package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// respond writes the uniform response envelope every endpoint uses.
func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{
		"code":    status,
		"message": message,
		"data":    data,
	})
}

func respondOK(c *gin.Context, data interface{}) {
	respond(c, http.StatusOK, "success", data)
}

func respondError(c *gin.Context, status int, message string) {
	respond(c, status, message, nil)
}

// parseIDParam reads the :id path segment as an unsigned integer.
func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return uint(id), true
}

// queryUint reads an optional unsigned query parameter, returning nil when
// absent.
func queryUint(c *gin.Context, name string) (*uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, err
	}
	u := uint(v)
	return &u, nil
}

// queryFormUint parses a non-empty form value as an unsigned integer.
func queryFormUint(raw string) (*uint, error) {
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return nil, err
	}
	u := uint(v)
	return &u, nil
}

func queryInt(c *gin.Context, name string) (*int, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
