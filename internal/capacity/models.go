// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 L5 Contributors

package capacity

import "github.com/l5-scheduler/l5/internal/upstream"

// RequestGroup is a fleet request configuration.
type RequestGroup struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// InstancePool is an instance type in one availability zone.
type InstancePool struct {
	ID           int64  `json:"id"`
	InstanceType string `json:"instance_type"`
	Region       string `json:"region"`
	AZ           string `json:"az"`
}

// PlacementScore is a spot placement score measured for a request group.
type PlacementScore struct {
	MeasuredAt       upstream.Timestamp `json:"measured_at"`
	Score            float64            `json:"score"`
	AvailabilityZone string             `json:"availability_zone"`
	TargetCapacity   int                `json:"target_capacity"`
	RequestGroupID   int64              `json:"request_group_id"`
}

// SpotPrice is a price observation for a pool.
type SpotPrice struct {
	MeasuredAt upstream.Timestamp `json:"measured_at"`
	Price      float64            `json:"price"`
	PoolID     int64              `json:"pool_id"`
}

// InterruptionRate is an interruption frequency observation for a pool.
type InterruptionRate struct {
	MeasuredAt upstream.Timestamp `json:"measured_at"`
	Rate       float64            `json:"rate"`
	PoolID     int64              `json:"pool_id"`
}
