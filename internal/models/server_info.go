package models

// SystemResources represents resource usage of the gateway process
type SystemResources struct {
	CPUCount      int     `json:"cpu_count"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryRSS     uint64  `json:"memory_rss"`
	MemoryVMS     uint64  `json:"memory_vms"`
	MemoryPercent float32 `json:"memory_percent"`
	NumGoroutine  int     `json:"num_goroutine"`
}

// ServerInfoResponse represents the server info response
type ServerInfoResponse struct {
	Uptime        float64         `json:"uptime"`
	Remote        string          `json:"remote"`
	RcloneVersion string          `json:"rclone_version,omitempty"`
	Resources     SystemResources `json:"resources"`
}
