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

package config

import (
	"github.com/spf13/viper"
)

var (
	logConf   *Log
	partyConf *PartyConf
)

// PartyConf describes one party of the hetero federation
type PartyConf struct {
	Name           string
	Role           string // guest, host or arbiter
	ListenAddress  string
	RpcTimeout     int // seconds, for each transfer request
	RecvTimeout    int // seconds, 0 means wait until the task is cancelled
	MetricsAddress string // prometheus endpoint, empty disables it
	Peers          map[string]string
	Storage        *StorageConf
	Selection      *SelectionConf
	Glm            *GlmConf
}

type StorageConf struct {
	LocalStoragePath string
}

type SelectionConf struct {
	FilterMethods []string
	UniqueValue   *UniqueValueConf
	Outlier       *OutlierConf
	VarianceCoe   *VarianceCoeConf
	Iv            *IvConf
}

type UniqueValueConf struct {
	Eps float64
}

type OutlierConf struct {
	Percentile     float64
	UpperThreshold float64
}

type VarianceCoeConf struct {
	ValueThreshold float64
}

// IvConf is only read by guest. HostIvValues holds the information value of every host column,
// when empty HostLeftCols maps filter name to host columns the guest accepts.
type IvConf struct {
	ValueThreshold float64
	Percentile     float64
	HostIvValues   []float64
	HostLeftCols   map[string][]int
}

type GlmConf struct {
	EncryptMethod    string
	KeyLength        int
	Precision        int
	Penalty          string
	Eps              float64
	Alpha            float64
	Optimizer        string
	BatchSize        int
	LearningRate     float64
	MaxIter          int
	ConvergeFunc     string
	ReEncryptBatches int
	PartyWeight      float64
	FitIntercept     bool
	ExposureIndex    int
	Cv               *CvConf
}

type CvConf struct {
	NSplits int
	Shuffle bool
	Seed    string
}

type Log struct {
	Level string
	Path  string
}

// InitConfig parses configuration file
func InitConfig(configPath string) error {
	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	logConf = new(Log)
	err := v.Sub("log").Unmarshal(logConf)
	if err != nil {
		return err
	}
	partyConf = new(PartyConf)
	err = v.Sub("party").Unmarshal(partyConf)
	if err != nil {
		return err
	}
	// -1 means that no exposure column is used
	if partyConf.Glm != nil && !v.IsSet("party.glm.exposureIndex") {
		partyConf.Glm.ExposureIndex = -1
	}
	return nil
}

func GetPartyConf() *PartyConf {
	return partyConf
}

func GetLogConf() *Log {
	return logConf
}
