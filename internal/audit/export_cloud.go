// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package audit

import (
	"context"

	"github.com/veilquery/mediator/connectors/base"
)

// ConnectorExportSink adapts any connected base.Connector exposing a
// put_object Execute action (GCS, Azure Blob, S3) into an ExportSink, so a
// JSON or CSV export can be written to whichever cloud bucket the connector
// was configured against.
type ConnectorExportSink struct {
	connector base.Connector
	bucket    string
}

// NewConnectorExportSink wraps an already-Connected connector.
func NewConnectorExportSink(connector base.Connector, bucket string) *ConnectorExportSink {
	return &ConnectorExportSink{connector: connector, bucket: bucket}
}

// Write uploads data under key via the connector's put_object action.
func (s *ConnectorExportSink) Write(ctx context.Context, key string, contentType string, data []byte) error {
	_, err := s.connector.Execute(ctx, &base.Command{
		Action: "put_object",
		Parameters: map[string]interface{}{
			"bucket":       s.bucket,
			"key":          key,
			"content":      string(data),
			"content_type": contentType,
		},
	})
	return err
}
