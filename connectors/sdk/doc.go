// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sdk provides the AxonFlow Connector SDK for building custom MCP connectors.
//
// The SDK provides base implementations, utilities, and testing tools to help developers
// create production-quality connectors that integrate with the AxonFlow platform.
//
// # Quick Start
//
// To create a custom connector, embed BaseConnector and implement the required interface methods:
//
//	type MyConnector struct {
//	    sdk.BaseConnector
//	    client *myapi.Client
//	}
//
//	func (c *MyConnector) Connect(ctx context.Context, config *base.ConnectorConfig) error {
//	    if err := c.BaseConnector.Connect(ctx, config); err != nil {
//	        return err
//	    }
//	    // Custom connection logic
//	    return nil
//	}
//
// # Features
//
// The SDK provides:
//   - BaseConnector: Embeddable base implementation with common functionality
//   - Config validation: required/optional field checking with default application
//   - Metrics: Prometheus-compatible metrics collection
//   - Timer: per-operation duration recording into those metrics
//
// # Config validation
//
//	conn.SetValidator(sdk.NewDefaultConfigValidator(
//	    []string{"default_bucket"},
//	    map[string]interface{}{"region": "us-east-1"},
//	))
//
// # Metrics
//
//	timer := sdk.NewTimer()
//	defer timer.RecordTo(c.GetMetrics().RecordQuery, nil)
package sdk
