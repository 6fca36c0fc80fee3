// Copyright (c) 2021 PaddlePaddle Authors. All Rights Reserved.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/PaddlePaddle/PaddleDTX/hetero/dataset"
	"github.com/PaddlePaddle/PaddleDTX/hetero/engine"
)

var (
	version string
	output  string
)

// predictCmd predicts with a stored model, only the guest writes predictions
var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "replay the stored feature selection and predict with the stored model",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNode(func(ctx context.Context, n *engine.Node) error {
			data, err := loadData(n.Role())
			if err != nil {
				return err
			}
			pred, err := n.Predict(ctx, taskID, version, data)
			if err != nil {
				return err
			}
			if pred == nil {
				fmt.Println("prediction finished, no result on this party")
				return nil
			}

			rows := [][]string{{idName, "mu"}}
			for i, id := range pred.IDs {
				rows = append(rows, []string{id, strconv.FormatFloat(pred.Mu[i], 'f', -1, 64)})
			}
			if err := dataset.WriteRows(rows, output); err != nil {
				return err
			}
			fmt.Printf("%d predictions written to %s\n", len(pred.IDs), output)
			return nil
		})
	},
}

func init() {
	predictCmd.Flags().StringVarP(&version, "version", "v", "", "model version returned by fit")
	predictCmd.Flags().StringVarP(&output, "output", "o", "./predictions.csv", "csv file to write predictions to")
	predictCmd.MarkFlagRequired("version")
}
