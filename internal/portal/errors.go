/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package portal

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a delivery to the portal failed.
type FailureKind string

const (
	// FailureNetwork means the request never produced a response.
	FailureNetwork FailureKind = "network"
	// FailureValidation means the portal rejected the payload (4xx or success:false).
	FailureValidation FailureKind = "validation"
	// FailureServer means the portal failed to process a valid request (5xx).
	FailureServer FailureKind = "server"
)

// DeliveryError is returned by Client.Send for every failed delivery.
type DeliveryError struct {
	Kind       FailureKind
	StatusCode int
	Message    string
	Err        error
}

func (e *DeliveryError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("portal delivery failed (%s, status %d): %s", e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("portal delivery failed (%s): %s", e.Kind, msg)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Retryable reports whether sending the same event again may succeed.
func (e *DeliveryError) Retryable() bool {
	return e.Kind != FailureValidation
}

// IsRetryable reports whether err is a retryable DeliveryError. Errors that
// are not delivery errors are treated as retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var delivery *DeliveryError
	if errors.As(err, &delivery) {
		return delivery.Retryable()
	}
	return true
}
