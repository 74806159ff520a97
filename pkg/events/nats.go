/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/fleetsync/pkg/models"
)

const (
	eventSource          = "fleetsync/engine"
	subjectDeviceStatus  = "events.device.status"
	subjectSnapshot      = "events.device.snapshot"
	typeStatusChangedCE  = "com.carverauto.fleetsync.device.status"
	typeSnapshotUpdateCE = "com.carverauto.fleetsync.device.snapshot"
)

// NATSPublisher mirrors bus events onto a JetStream stream as
// CloudEvents v1.0, for subscribers outside the process.
type NATSPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream string
}

// NewNATSPublisher connects, ensures the stream exists, and returns a
// publisher. The caller owns Close.
func NewNATSPublisher(ctx context.Context, natsCfg *models.NATSConfig, eventsCfg models.EventsConfig) (*NATSPublisher, error) {
	nc, err := nats.Connect(natsCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	var js jetstream.JetStream
	if natsCfg.Domain != "" {
		js, err = jetstream.NewWithDomain(nc, natsCfg.Domain)
	} else {
		js, err = jetstream.New(nc)
	}

	if err != nil {
		nc.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err = js.Stream(ctx, eventsCfg.StreamName); err != nil {
		streamConfig := jetstream.StreamConfig{
			Name:     eventsCfg.StreamName,
			Subjects: eventsCfg.Subjects,
		}

		if _, err = js.CreateOrUpdateStream(ctx, streamConfig); err != nil {
			nc.Close()

			return nil, fmt.Errorf("failed to create or get stream %s: %w", eventsCfg.StreamName, err)
		}
	}

	return &NATSPublisher{nc: nc, js: js, stream: eventsCfg.StreamName}, nil
}

// PublishStatusChange publishes a device-status-changed CloudEvent.
func (p *NATSPublisher) PublishStatusChange(ctx context.Context, data models.DeviceStatusEventData) error {
	return p.publish(ctx, typeStatusChangedCE, subjectDeviceStatus, data.Timestamp, data)
}

// PublishSnapshot publishes a snapshot-updated CloudEvent.
func (p *NATSPublisher) PublishSnapshot(ctx context.Context, data models.SnapshotEventData) error {
	return p.publish(ctx, typeSnapshotUpdateCE, subjectSnapshot, data.Timestamp, data)
}

func (p *NATSPublisher) publish(ctx context.Context, ceType, subject string, at time.Time, data interface{}) error {
	event := models.CloudEvent{
		SpecVersion:     "1.0",
		ID:              uuid.New().String(),
		Source:          eventSource,
		Type:            ceType,
		DataContentType: "application/json",
		Subject:         subject,
		Time:            &at,
		Data:            data,
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := p.js.Publish(ctx, subject, eventBytes); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Close drains the underlying connection.
func (p *NATSPublisher) Close() {
	p.nc.Close()
}
