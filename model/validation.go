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

import (
	"encoding/json"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

func requiredDecimal(value interface{}) error {
	d, ok := value.(decimal.NullDecimal)
	if !ok || !d.Valid {
		return errors.New("cannot be blank")
	}
	return nil
}

func requiredJSON(value interface{}) error {
	raw, _ := value.(json.RawMessage)
	if len(raw) == 0 || string(raw) == "null" {
		return errors.New("cannot be blank")
	}
	return nil
}

func (l *LoanSync) Validate() error {
	return validation.ValidateStruct(l,
		validation.Field(&l.LoanID, validation.Required),
		validation.Field(&l.LastPaymentDate, validation.Date(dateLayout)),
	)
}

func (v *VisitCompletion) Validate() error {
	return validation.ValidateStruct(v,
		validation.Field(&v.VisitID, validation.Required),
	)
}

func (a *CollectionActivity) Validate() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.LoanID, validation.Required),
		validation.Field(&a.ActivityType, validation.Required),
		validation.Field(&a.Amount, validation.By(requiredDecimal)),
	)
}

func (w *PortalWebhook) Validate() error {
	return validation.ValidateStruct(w,
		validation.Field(&w.EventType, validation.Required),
		validation.Field(&w.Data, validation.By(requiredJSON)),
	)
}
