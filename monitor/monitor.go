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

// Package monitor exposes training progress as prometheus metrics.
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hetero"

// Recorder records the progress of fit and selection tasks of one party
type Recorder struct {
	registry *prometheus.Registry

	loss         *prometheus.GaugeVec
	iterations   *prometheus.CounterVec
	converged    *prometheus.GaugeVec
	leftCols     *prometheus.GaugeVec
	taskDuration *prometheus.HistogramVec
	taskTotal    *prometheus.CounterVec
}

// NewRecorder creates a Recorder with its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		loss: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "glm",
			Name:      "loss",
			Help:      "Loss of the latest finished iteration",
		}, []string{"role", "task"}),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "glm",
			Name:      "iterations_total",
			Help:      "Finished training iterations",
		}, []string{"role", "task"}),
		converged: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "glm",
			Name:      "converged",
			Help:      "1 if the latest fit converged",
		}, []string{"role", "task"}),
		leftCols: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "selection",
			Name:      "left_cols",
			Help:      "Number of columns left after feature selection",
		}, []string{"role", "task"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Duration of fit, predict and cv tasks",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"role", "kind"}),
		taskTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Tasks by kind and result",
		}, []string{"role", "kind", "result"}),
	}
	r.registry.MustRegister(r.loss, r.iterations, r.converged, r.leftCols, r.taskDuration, r.taskTotal)
	return r
}

// Registry returns the registry holding every metric of r
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// LossCallback returns a per iteration callback for a training task
func (r *Recorder) LossCallback(role, task string) func(iter int, loss float64) {
	return func(iter int, loss float64) {
		r.loss.WithLabelValues(role, task).Set(loss)
		r.iterations.WithLabelValues(role, task).Inc()
	}
}

// SetConverged records the terminal state of a fit
func (r *Recorder) SetConverged(role, task string, converged bool) {
	v := 0.0
	if converged {
		v = 1
	}
	r.converged.WithLabelValues(role, task).Set(v)
}

// SetLeftCols records how many columns feature selection kept
func (r *Recorder) SetLeftCols(role, task string, n int) {
	r.leftCols.WithLabelValues(role, task).Set(float64(n))
}

// ObserveTask records a finished task, started at start
func (r *Recorder) ObserveTask(role, kind string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	r.taskDuration.WithLabelValues(role, kind).Observe(time.Since(start).Seconds())
	r.taskTotal.WithLabelValues(role, kind, result).Inc()
}

// Handler serves the metrics of r
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
