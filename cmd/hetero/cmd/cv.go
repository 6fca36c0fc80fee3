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

// cvCmd scores the configured model with k-fold cross validation
var cvCmd = &cobra.Command{
	Use:   "cv",
	Short: "cross validate feature selection and poisson regression, nothing is stored",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runNode(func(ctx context.Context, n *engine.Node) error {
			data, err := loadData(n.Role())
			if err != nil {
				return err
			}
			res, err := n.CrossValidate(ctx, taskID, data)
			if err != nil {
				return err
			}
			if len(res.RMSE) == 0 {
				fmt.Println("cross validation finished, no score on this party")
				return nil
			}
			for i := 0; i < len(res.RMSE); i++ {
				fmt.Printf("fold %d rmse: %v\n", i, res.RMSE[i])
			}
			fmt.Printf("mean rmse: %v, std: %v\n", res.Mean, res.Std)
			return nil
		})
	},
}
