package biz

import (
	"encoding/json"

	"github.com/GOSC-CNIC/vms/internal/constants"
	"github.com/GOSC-CNIC/vms/internal/errors"
)

// InstanceConfig 订购资源规格配置，封闭的变体类型，
// 具体类型与资源类型一一对应，订单中保存其序列化快照。
type InstanceConfig interface {
	// ResourceType 配置对应的资源类型
	ResourceType() string

	sealed()
}

// ServerConfig 云主机订购规格
type ServerConfig struct {
	VMCPU            int    `json:"vm_cpu"`
	VMRamMiB         int    `json:"vm_ram"` // 内存MiB
	VMSystemDiskGiB  int    `json:"vm_systemdisk_size"`
	VMPublicIP       bool   `json:"vm_public_ip"`
	VMImageID        string `json:"vm_image_id"`
	VMNetworkID      string `json:"vm_network_id"`
	VMAzoneID        string `json:"vm_azone_id"`
	VMFlavorID       string `json:"vm_flavor_id"`
}

func (ServerConfig) ResourceType() string { return constants.ResourceTypeVM }
func (ServerConfig) sealed()              {}

// RamGiB 内存GiB数
func (c ServerConfig) RamGiB() float64 { return float64(c.VMRamMiB) / 1024 }

// DiskConfig 云硬盘订购规格
type DiskConfig struct {
	DiskSizeGiB int    `json:"disk_size"`
	DiskAzoneID string `json:"disk_azone_id"`
	DiskRemarks string `json:"disk_remarks"`
}

func (DiskConfig) ResourceType() string { return constants.ResourceTypeDisk }
func (DiskConfig) sealed()              {}

// BucketConfig 对象存储桶订购规格
type BucketConfig struct {
	BucketName string `json:"bucket_name"`
}

func (BucketConfig) ResourceType() string { return constants.ResourceTypeBucket }
func (BucketConfig) sealed()              {}

// ScanConfig 安全扫描任务订购规格，web_url和host_addr至少指定一个
type ScanConfig struct {
	TaskName string `json:"name"`
	WebURL   string `json:"web_url"`
	HostAddr string `json:"host_addr"`
	Remark   string `json:"remark"`
}

func (ScanConfig) ResourceType() string { return constants.ResourceTypeScan }
func (ScanConfig) sealed()              {}

// ServerSnapshotConfig 云主机快照订购规格
type ServerSnapshotConfig struct {
	ServerID          string `json:"server_id"`
	SystemDiskSizeGiB int    `json:"systemdisk_size"`
	SnapshotName      string `json:"snapshot_name"`
}

func (ServerSnapshotConfig) ResourceType() string { return constants.ResourceTypeVMSnapshot }
func (ServerSnapshotConfig) sealed()              {}

// MarshalInstanceConfig 序列化规格配置，作为订单的规格快照保存
func MarshalInstanceConfig(c InstanceConfig) (string, error) {
	if c == nil {
		return "", errors.Error("无效的资源规格配置")
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", errors.ConvertToError(err)
	}
	return string(b), nil
}

// UnmarshalInstanceConfig 按资源类型反序列化订单中保存的规格快照
func UnmarshalInstanceConfig(resourceType, data string) (InstanceConfig, error) {
	var c InstanceConfig
	switch resourceType {
	case constants.ResourceTypeVM:
		c = &ServerConfig{}
	case constants.ResourceTypeDisk:
		c = &DiskConfig{}
	case constants.ResourceTypeBucket:
		c = &BucketConfig{}
	case constants.ResourceTypeScan:
		c = &ScanConfig{}
	case constants.ResourceTypeVMSnapshot:
		c = &ServerSnapshotConfig{}
	default:
		return nil, errors.Error("无效的资源类型")
	}
	if err := json.Unmarshal([]byte(data), c); err != nil {
		return nil, errors.ConvertToError(err)
	}
	switch v := c.(type) {
	case *ServerConfig:
		return *v, nil
	case *DiskConfig:
		return *v, nil
	case *BucketConfig:
		return *v, nil
	case *ScanConfig:
		return *v, nil
	case *ServerSnapshotConfig:
		return *v, nil
	}
	return nil, errors.Error("无效的资源类型")
}
