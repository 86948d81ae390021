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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"
)

// sweepCommands runs one reconciliation sweep and prints the result.
func sweepCommands(app *syncInstance) *cobra.Command {
	var hours int

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "re-send recently updated loans to the Collection Portal",
		Run: func(cmd *cobra.Command, args []string) {
			defer func() {
				if err := app.sync.Close(); err != nil {
					log.Printf("Error closing portal sync: %v", err)
				}
			}()

			result, err := app.sync.ManualSync(context.Background(), time.Duration(hours)*time.Hour)
			if err != nil {
				log.Fatalf("Manual sync failed: %v", err)
			}

			data, err := json.MarshalIndent(result, "", "    ")
			if err != nil {
				log.Fatalf("Error printing result: %v", err)
			}
			fmt.Println(string(data))
		},
	}

	cmd.Flags().IntVar(&hours, "hours", 0, "lookback window in hours (defaults to sweep.lookback_hours)")
	return cmd
}
