package local

// Usage is the capacity of the filesystem holding the root.
type Usage struct {
	TotalBytes uint64 `json:"total_bytes"`
	FreeBytes  uint64 `json:"free_bytes"`
	AvailBytes uint64 `json:"avail_bytes"`
}

// DiskUsage reports capacity for the filesystem holding the root.
func (b *Backend) DiskUsage() (Usage, error) {
	return diskUsage(b.root.Path())
}
