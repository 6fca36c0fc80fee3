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
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/PaddlePaddle/PaddleDTX/hetero/config"
	"github.com/PaddlePaddle/PaddleDTX/hetero/dataset"
	"github.com/PaddlePaddle/PaddleDTX/hetero/engine"
	"github.com/PaddlePaddle/PaddleDTX/hetero/transfer"
	"github.com/PaddlePaddle/PaddleDTX/hetero/util/logging"
)

var (
	configPath string
	taskID     string
	dataPath   string
	idName     string
	labelName  string
)

// rootCmd represents the base command that is called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hetero",
	Short: "hetero feature selection and poisson regression for guest, host and arbiter",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.InitConfig(configPath); err != nil {
			return err
		}
		logStd, err := logging.InitLog(config.GetLogConf(), "hetero.log", true)
		if err != nil {
			return err
		}
		logStd.Apply()
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "conf", "c", "./conf/config.toml", "configuration file")
	rootCmd.PersistentFlags().StringVarP(&taskID, "task", "t", "", "task id shared by every party, a uuid")
	rootCmd.PersistentFlags().StringVarP(&dataPath, "data", "d", "", "csv file of the party's records, not used by arbiter")
	rootCmd.PersistentFlags().StringVar(&idName, "id", "id", "name of the id column")
	rootCmd.PersistentFlags().StringVar(&labelName, "label", "", "name of the label column, guest only")
	rootCmd.MarkPersistentFlagRequired("task")

	rootCmd.AddCommand(fitCmd, predictCmd, cvCmd)
}

// runNode starts the configured node, runs task and stops on SIGINT or SIGTERM
func runNode(task func(ctx context.Context, n *engine.Node) error) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)
	go func() {
		select {
		case <-quit:
			logrus.Info("received signal, cancel task")
			cancel()
		case <-ctx.Done():
		}
	}()

	n, err := engine.NewNode(config.GetPartyConf())
	if err != nil {
		return err
	}
	if err := n.Start(ctx); err != nil {
		return err
	}
	defer n.Close()
	return task(ctx, n)
}

// loadData reads the party's records, the arbiter holds none
func loadData(role string) (*dataset.Table, error) {
	if role == transfer.RoleArbiter {
		return nil, nil
	}
	return dataset.ReadCSV(dataPath, idName, labelName)
}
