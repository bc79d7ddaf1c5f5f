package model

import "time"

// Resource 订单订购的资源实例记录，归属于一个订单(1:N)
type Resource struct {
	ID                 string     `gorm:"primaryKey;column:resource_id;type:varchar(36)"`
	OrderID            string     `gorm:"column:order_id;type:varchar(36);not null;index:idx_order_id"`
	ResourceType       string     `gorm:"column:resource_type;type:varchar(16);not null"`
	InstanceID         string     `gorm:"column:instance_id;type:varchar(36);index:idx_instance_id"` // 资源实例id，后缀区分类型
	InstanceStatus     string     `gorm:"column:instance_status;type:varchar(16);default:'wait'"`
	InstanceRemark     string     `gorm:"column:instance_remark;type:varchar(255)"`
	Desc               string     `gorm:"column:desc;type:varchar(255)"` // 资源交付结果描述
	DeliveredTime      *time.Time `gorm:"column:delivered_time"`
	InstanceDeleteTime *time.Time `gorm:"column:instance_delete_time"` // 资源实例删除时间
	CreatedAt          time.Time  `gorm:"column:creation_time;autoCreateTime"`
}

func (Resource) TableName() string { return "order_resource" }
