/*
Copyright Prova Contributors. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package rest defines the common REST controller surface: the handler
// contract the HTTP router consumes and the JSON response helpers shared by
// all operations.
package rest

import (
	"encoding/json"
	"net/http"

	"github.com/xavi-pinsach/prova/pkg/common/log"
)

var logger = log.New("prova/rest")

// Handler http handler for each controller API endpoint.
type Handler interface {
	Path() string
	Method() string
	Handle() http.HandlerFunc
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Message string `json:"error"`
}

// SendError writes an error body with the given HTTP status.
func SendError(rw http.ResponseWriter, statusCode int, message string) {
	SendJSON(rw, statusCode, ErrorResponse{Message: message})
}

// SendInternalError logs the cause and writes a generic 500 body. The cause
// never reaches the client.
func SendInternalError(rw http.ResponseWriter, err error) {
	logger.Errorf("internal error: %s", err)

	SendError(rw, http.StatusInternalServerError, "Internal server error")
}

// SendJSON writes a JSON body with the given HTTP status.
func SendJSON(rw http.ResponseWriter, statusCode int, body interface{}) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(statusCode)

	if err := json.NewEncoder(rw).Encode(body); err != nil {
		logger.Errorf("unable to send response: %s", err)
	}
}
