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

	"github.com/spf13/cobra"

	"github.com/PaddlePaddle/PaddleDTX/hetero/engine"
)

// fitCmd selects features, trains the model and stores it under the task id
var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "run feature selection and poisson regression training, the model version is the task id",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNode(func(ctx context.Context, n *engine.Node) error {
			data, err := loadData(n.Role())
			if err != nil {
				return err
			}
			res, err := n.Fit(ctx, taskID, data)
			if err != nil {
				return err
			}
			fmt.Printf("model version: %s\n", res.Version)
			fmt.Printf("left cols: %v\n", res.LeftCols)
			fmt.Printf("iterations: %d, loss: %v, converged: %v\n", res.NIter, res.Loss, res.IsConverged)
			return nil
		})
	},
}
