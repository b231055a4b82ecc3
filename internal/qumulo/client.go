// Package qumulo is a thin HTTP wrapper around the Qumulo Core REST API,
// covering the read-only surface the status collector needs.
package qumulo

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultHTTPTimeout = 15 * time.Second

const defaultPort = 8000

const maxResponseBodyBytes int64 = 8 * 1024 * 1024

// ClientConfig configures the Qumulo REST API client.
type ClientConfig struct {
	Host               string
	Port               int
	Token              string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// Client issues authenticated requests against one cluster.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	baseURL    string
}

// APIError represents an HTTP-level error from the Qumulo REST API.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("qumulo request %s %s failed: status=%d body=%q", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsConnectivityError reports whether the error represents a transport-level
// failure (refused connection, timeout, DNS) rather than an API response.
// API-level errors mean the cluster is reachable even if a read failed.
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	return true
}

// NewClient creates a new Qumulo REST API client.
func NewClient(config ClientConfig) (*Client, error) {
	host := strings.TrimSpace(config.Host)
	if host == "" {
		return nil, fmt.Errorf("qumulo host is required")
	}
	if strings.TrimSpace(config.Token) == "" {
		return nil, fmt.Errorf("qumulo access token is required")
	}

	port := config.Port
	if port == 0 {
		port = defaultPort
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid qumulo port %d", port)
	}
	if strings.Contains(host, "://") {
		parsed, err := url.Parse(host)
		if err != nil || parsed.Host == "" {
			return nil, fmt.Errorf("parse qumulo host %q: invalid URL", host)
		}
		if !strings.EqualFold(parsed.Scheme, "https") {
			return nil, fmt.Errorf("unsupported qumulo scheme %q", parsed.Scheme)
		}
		host = parsed.Host
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: config.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	hostPort := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		hostPort = net.JoinHostPort(host, strconv.Itoa(port))
	}

	config.Host = host
	config.Timeout = timeout

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		baseURL: fmt.Sprintf("https://%s", hostPort),
	}, nil
}

// Close releases idle HTTP transport connections held by the client.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil || c.httpClient.Transport == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(interface{ CloseIdleConnections() }); ok {
		transport.CloseIdleConnections()
	}
}

// GetClusterSettings returns the cluster name and UUID.
func (c *Client) GetClusterSettings(ctx context.Context) (*ClusterSettings, error) {
	var response clusterSettingsResponse
	if err := c.getJSON(ctx, "/v1/cluster/settings", &response); err != nil {
		return nil, err
	}
	return &ClusterSettings{
		Name: strings.TrimSpace(response.ClusterName),
		UUID: strings.TrimSpace(response.ClusterUUID),
	}, nil
}

// GetVersion returns the cluster software version.
func (c *Client) GetVersion(ctx context.Context) (*VersionInfo, error) {
	var response versionResponse
	if err := c.getJSON(ctx, "/v1/version", &response); err != nil {
		return nil, err
	}
	return &VersionInfo{
		Revision: strings.TrimSpace(response.RevisionID),
		BuildID:  strings.TrimSpace(response.BuildID),
	}, nil
}

// GetNodes returns the cluster node inventory.
func (c *Client) GetNodes(ctx context.Context) ([]Node, error) {
	var response []nodeResponse
	if err := c.getJSON(ctx, "/v1/cluster/nodes/", &response); err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, len(response))
	for _, item := range response {
		nodes = append(nodes, Node{
			ID:     item.ID,
			Status: strings.TrimSpace(item.NodeStatus),
			Model:  strings.TrimSpace(item.ModelNumber),
		})
	}
	return nodes, nil
}

// GetFileSystem returns cluster-wide capacity totals.
func (c *Client) GetFileSystem(ctx context.Context) (*FileSystemStats, error) {
	var response fileSystemResponse
	if err := c.getJSON(ctx, "/v1/file-system", &response); err != nil {
		return nil, err
	}

	total, err := response.TotalSizeBytes.int64Value()
	if err != nil {
		return nil, fmt.Errorf("parse file-system total size: %w", err)
	}
	free, err := response.FreeSizeBytes.int64Value()
	if err != nil {
		return nil, fmt.Errorf("parse file-system free size: %w", err)
	}
	snapshot, _ := response.SnapshotSizeBytes.int64Value()

	return &FileSystemStats{
		TotalBytes:    total,
		FreeBytes:     free,
		SnapshotBytes: snapshot,
	}, nil
}

// GetCapacityHistory returns daily capacity samples since the given time.
func (c *Client) GetCapacityHistory(ctx context.Context, since time.Time) ([]CapacityHistoryEntry, error) {
	path := fmt.Sprintf("/v1/analytics/capacity-history/?begin-time=%d&interval=DAILY", since.Unix())
	var response []capacityHistoryEntryResponse
	if err := c.getJSON(ctx, path, &response); err != nil {
		return nil, err
	}

	entries := make([]CapacityHistoryEntry, 0, len(response))
	for _, item := range response {
		used, err := item.CapacityUsed.int64Value()
		if err != nil {
			continue
		}
		entries = append(entries, CapacityHistoryEntry{
			PeriodStart: time.Unix(item.PeriodStartTime, 0).UTC(),
			UsedBytes:   used,
		})
	}
	return entries, nil
}

// GetActivitySum returns the summed rate of current activity entries of the
// given type across the cluster.
func (c *Client) GetActivitySum(ctx context.Context, activityType string) (float64, error) {
	path := "/v1/analytics/activity/current?type=" + url.QueryEscape(activityType)
	var response activityResponse
	if err := c.getJSON(ctx, path, &response); err != nil {
		return 0, err
	}

	var sum float64
	for _, entry := range response.Entries {
		if entry.Type == activityType {
			sum += entry.Rate
		}
	}
	return sum, nil
}

// GetDriveSlots returns the state of every disk slot in the cluster.
func (c *Client) GetDriveSlots(ctx context.Context) ([]DriveSlot, error) {
	var response []driveSlotResponse
	if err := c.getJSON(ctx, "/v1/cluster/slots/", &response); err != nil {
		return nil, err
	}

	slots := make([]DriveSlot, 0, len(response))
	for _, item := range response {
		slots = append(slots, DriveSlot{
			ID:       strings.TrimSpace(item.ID),
			NodeID:   item.NodeID,
			Bay:      strings.TrimSpace(item.DriveBay),
			DiskType: strings.TrimSpace(item.DiskType),
			State:    strings.TrimSpace(item.State),
		})
	}
	return slots, nil
}

// GetChassisPSUs returns every power supply's state across the cluster.
func (c *Client) GetChassisPSUs(ctx context.Context) ([]ChassisPSU, error) {
	var response []chassisResponse
	if err := c.getJSON(ctx, "/v1/cluster/nodes/chassis/", &response); err != nil {
		return nil, err
	}

	var psus []ChassisPSU
	for _, node := range response {
		for _, psu := range node.PSUStatuses {
			psus = append(psus, ChassisPSU{
				NodeID:   node.ID,
				Name:     strings.TrimSpace(psu.Name),
				Location: strings.TrimSpace(psu.Location),
				State:    strings.TrimSpace(psu.State),
			})
		}
	}
	return psus, nil
}

// GetProtectionStatus returns the cluster's remaining failure tolerance.
func (c *Client) GetProtectionStatus(ctx context.Context) (*ProtectionStatus, error) {
	var response protectionStatusResponse
	if err := c.getJSON(ctx, "/v1/cluster/protection/status", &response); err != nil {
		return nil, err
	}
	return &ProtectionStatus{
		RemainingNodeFailures:  response.RemainingNodeFailures,
		RemainingDriveFailures: response.RemainingDriveFailures,
		SystemType:             strings.TrimSpace(response.ProtectionSystemType),
	}, nil
}

// GetRestriperStatus returns data-protection rebuild state.
func (c *Client) GetRestriperStatus(ctx context.Context) (*RestriperStatus, error) {
	var response restriperStatusResponse
	if err := c.getJSON(ctx, "/v1/cluster/restriper/status", &response); err != nil {
		return nil, err
	}
	return &RestriperStatus{
		Status:     strings.TrimSpace(response.Status),
		DataAtRisk: response.DataAtRisk,
	}, nil
}

// GetNetworkConnections returns the active client connection census per node,
// with protocol names normalized for display.
func (c *Client) GetNetworkConnections(ctx context.Context) ([]NodeConnections, error) {
	var response []nodeConnectionsResponse
	if err := c.getJSON(ctx, "/v2/network/connections/", &response); err != nil {
		return nil, err
	}

	nodes := make([]NodeConnections, 0, len(response))
	for _, item := range response {
		byProtocol := make(map[string]int)
		for _, conn := range item.Connections {
			byProtocol[normalizeConnectionType(conn.Type)]++
		}
		nodes = append(nodes, NodeConnections{
			NodeID:     item.ID,
			Total:      len(item.Connections),
			ByProtocol: byProtocol,
		})
	}
	return nodes, nil
}

// GetNetworkStatus returns per-node NIC counters and link speed.
func (c *Client) GetNetworkStatus(ctx context.Context) ([]NodeNetworkStatus, error) {
	var response []nodeNetworkStatusResponse
	if err := c.getJSON(ctx, "/v3/network/status", &response); err != nil {
		return nil, err
	}

	nodes := make([]NodeNetworkStatus, 0, len(response))
	for _, item := range response {
		devices := make([]NetworkDevice, 0, len(item.Devices))
		for _, dev := range item.Devices {
			sent, _ := dev.BytesSent.uint64Value()
			received, _ := dev.BytesReceived.uint64Value()
			speed, _ := dev.Speed.uint64Value()
			devices = append(devices, NetworkDevice{
				Name:          strings.TrimSpace(dev.Name),
				UseFor:        strings.TrimSpace(dev.NetworkDetails.UseFor),
				BytesSent:     sent,
				BytesReceived: received,
				SpeedMbps:     speed,
			})
		}
		nodes = append(nodes, NodeNetworkStatus{
			NodeID:  item.NodeID,
			Devices: devices,
		})
	}
	return nodes, nil
}

// GetRecursiveAggregates returns the recursive file and directory counts for
// the filesystem root. The endpoint pages its response; counts are summed
// across pages.
func (c *Client) GetRecursiveAggregates(ctx context.Context) (*AggregateTotals, error) {
	var response []aggregatesPageResponse
	if err := c.getJSON(ctx, "/v1/files/%2F/recursive-aggregates/", &response); err != nil {
		return nil, err
	}

	totals := &AggregateTotals{}
	for _, page := range response {
		for _, entry := range page.Files {
			if files, err := entry.NumFiles.int64Value(); err == nil {
				totals.Files += files
			}
			if dirs, err := entry.NumDirectories.int64Value(); err == nil {
				totals.Directories += dirs
			}
		}
	}
	return totals, nil
}

// GetSnapshotTotals returns the snapshot count and total bytes held by
// snapshots. The two reads are independent; an error on either fails the call.
func (c *Client) GetSnapshotTotals(ctx context.Context) (*SnapshotTotals, error) {
	var list snapshotListResponse
	if err := c.getJSON(ctx, "/v2/snapshots/", &list); err != nil {
		return nil, err
	}

	var capacityResponse snapshotCapacityResponse
	if err := c.getJSON(ctx, "/v1/snapshots/total-used-capacity", &capacityResponse); err != nil {
		return nil, err
	}
	totalBytes, _ := capacityResponse.Bytes.int64Value()

	return &SnapshotTotals{
		Count:      int64(len(list.Entries)),
		TotalBytes: totalBytes,
	}, nil
}

func normalizeConnectionType(raw string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(raw), "CONNECTION_TYPE_")
	if normalized == "" {
		return "UNKNOWN"
	}
	return normalized
}

func (c *Client) getJSON(ctx context.Context, path string, destination any) (err error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build qumulo request GET %s: %w", path, err)
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Authorization", "Bearer "+c.config.Token)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("qumulo request GET %s failed: %w", path, err)
	}
	defer func() {
		if closeErr := response.Body.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close qumulo response body for GET %s: %w", path, closeErr)
		}
	}()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		body, readErr := io.ReadAll(io.LimitReader(response.Body, 4096))
		if readErr != nil {
			return fmt.Errorf("read qumulo error response body for GET %s: %w", path, readErr)
		}
		message := strings.TrimSpace(string(body))
		if message == "" {
			message = http.StatusText(response.StatusCode)
		}
		return &APIError{
			StatusCode: response.StatusCode,
			Method:     http.MethodGet,
			Path:       path,
			Body:       message,
		}
	}

	responseBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes+1))
	if err != nil {
		return fmt.Errorf("read qumulo response for GET %s: %w", path, err)
	}
	if int64(len(responseBody)) > maxResponseBodyBytes {
		return fmt.Errorf("decode qumulo response for GET %s: response body exceeds %d bytes", path, maxResponseBodyBytes)
	}

	decoder := json.NewDecoder(bytes.NewReader(responseBody))
	decoder.UseNumber()
	if err := decoder.Decode(destination); err != nil {
		return fmt.Errorf("decode qumulo response for GET %s: %w", path, err)
	}
	return nil
}

type clusterSettingsResponse struct {
	ClusterName string `json:"cluster_name"`
	ClusterUUID string `json:"cluster_uuid"`
}

type versionResponse struct {
	RevisionID string `json:"revision_id"`
	BuildID    string `json:"build_id"`
}

type nodeResponse struct {
	ID          int    `json:"id"`
	NodeStatus  string `json:"node_status"`
	ModelNumber string `json:"model_number"`
}

type fileSystemResponse struct {
	TotalSizeBytes    byteValue `json:"total_size_bytes"`
	FreeSizeBytes     byteValue `json:"free_size_bytes"`
	SnapshotSizeBytes byteValue `json:"snapshot_size_bytes"`
}

type capacityHistoryEntryResponse struct {
	PeriodStartTime int64     `json:"period_start_time"`
	CapacityUsed    byteValue `json:"capacity_used"`
}

type activityResponse struct {
	Entries []struct {
		Type string  `json:"type"`
		Rate float64 `json:"rate"`
	} `json:"entries"`
}

type driveSlotResponse struct {
	ID       string `json:"id"`
	NodeID   int    `json:"node_id"`
	DriveBay string `json:"drive_bay"`
	DiskType string `json:"disk_type"`
	State    string `json:"state"`
}

type chassisResponse struct {
	ID          int `json:"id"`
	PSUStatuses []struct {
		Name     string `json:"name"`
		Location string `json:"location"`
		State    string `json:"state"`
	} `json:"psu_statuses"`
}

type protectionStatusResponse struct {
	RemainingNodeFailures  *int   `json:"remaining_node_failures"`
	RemainingDriveFailures *int   `json:"remaining_drive_failures"`
	ProtectionSystemType   string `json:"protection_system_type"`
}

type restriperStatusResponse struct {
	Status     string `json:"status"`
	DataAtRisk bool   `json:"data_at_risk"`
}

type nodeConnectionsResponse struct {
	ID          int `json:"id"`
	Connections []struct {
		Type           string `json:"type"`
		NetworkAddress string `json:"network_address"`
	} `json:"connections"`
}

type nodeNetworkStatusResponse struct {
	NodeID  int `json:"node_id"`
	Devices []struct {
		Name           string    `json:"name"`
		BytesSent      byteValue `json:"bytes_sent"`
		BytesReceived  byteValue `json:"bytes_received"`
		Speed          byteValue `json:"speed"`
		NetworkDetails struct {
			UseFor string `json:"use_for"`
		} `json:"network_details"`
	} `json:"devices"`
}

type aggregatesPageResponse struct {
	Files []struct {
		NumFiles       byteValue `json:"num_files"`
		NumDirectories byteValue `json:"num_directories"`
	} `json:"files"`
}

type snapshotListResponse struct {
	Entries []json.RawMessage `json:"entries"`
}

type snapshotCapacityResponse struct {
	Bytes byteValue `json:"bytes"`
}

// byteValue tolerates the API's habit of returning large counters as either
// JSON numbers or decimal strings.
type byteValue struct {
	raw json.RawMessage
}

func (b *byteValue) UnmarshalJSON(data []byte) error {
	b.raw = append(b.raw[:0], data...)
	return nil
}

func (b byteValue) int64Value() (int64, error) {
	if len(b.raw) == 0 {
		return 0, fmt.Errorf("missing numeric field")
	}

	var decoded any
	decoder := json.NewDecoder(bytes.NewReader(b.raw))
	decoder.UseNumber()
	if err := decoder.Decode(&decoded); err != nil {
		return 0, err
	}

	switch value := decoded.(type) {
	case json.Number:
		if integer, err := value.Int64(); err == nil {
			return integer, nil
		}
		floatValue, err := value.Float64()
		if err != nil {
			return 0, fmt.Errorf("parse json number %q: %w", value.String(), err)
		}
		return int64(floatValue), nil
	case string:
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return 0, fmt.Errorf("empty numeric string")
		}
		integer, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse numeric string %q: %w", value, err)
		}
		return integer, nil
	case nil:
		return 0, fmt.Errorf("numeric value is null")
	default:
		return 0, fmt.Errorf("unsupported numeric type %T", decoded)
	}
}

func (b byteValue) uint64Value() (uint64, error) {
	value, err := b.int64Value()
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, fmt.Errorf("negative counter value %d", value)
	}
	return uint64(value), nil
}
