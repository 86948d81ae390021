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

package model

import "encoding/json"

type ChangeOperation string

const (
	OperationInsert ChangeOperation = "INSERT"
	OperationUpdate ChangeOperation = "UPDATE"
	OperationDelete ChangeOperation = "DELETE"
)

const (
	TableLoans  = "loans"
	TableVisits = "visits"
)

// ChangeEvent is a row-level change notification published by the database
// triggers. Old is null for inserts and New is null for deletes.
type ChangeEvent struct {
	Table     string          `json:"table"`
	Operation ChangeOperation `json:"operation"`
	Old       json.RawMessage `json:"old"`
	New       json.RawMessage `json:"new"`
}

// DecodeNew unmarshals the post-change row into v.
func (c ChangeEvent) DecodeNew(v interface{}) error {
	return json.Unmarshal(c.New, v)
}
