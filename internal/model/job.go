package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrInvalidPayload = errors.New("invalid job payload")

type JobType string

const (
	JobAccountReceipt JobType = "account_receipt"
	JobOpenDrawer     JobType = "open_drawer"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// PrintJob is an explicit, auditable print request from the job queue.
type PrintJob struct {
	ID         string          `json:"jobId"`
	Type       JobType         `json:"jobType"`
	PrinterID  string          `json:"printerId,omitempty"`
	BusinessID string          `json:"businessId,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Status     JobStatus       `json:"status"`
}

// JobPayload is implemented by every job variant.
type JobPayload interface {
	JobType() JobType
	Validate() error
}

type Business struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	LogoURL  string `json:"logoUrl"`
	ShowLogo bool   `json:"showLogo"`
}

type ReceiptItem struct {
	Name      string     `json:"name"`
	UnitPrice float64    `json:"unitPrice"`
	Quantity  int        `json:"quantity"`
	Note      string     `json:"note"`
	Modifiers []string   `json:"modifiers"`
	Status    ItemStatus `json:"status"`
}

type AccountReceiptPayload struct {
	Business  Business      `json:"business"`
	StaffName string        `json:"staffName"`
	TableName string        `json:"tableName"`
	Items     []ReceiptItem `json:"items"`
}

func (AccountReceiptPayload) JobType() JobType { return JobAccountReceipt }

func (p AccountReceiptPayload) Validate() error {
	if len(p.Items) == 0 {
		return fmt.Errorf("%w: account receipt has no items", ErrInvalidPayload)
	}
	for i, it := range p.Items {
		if it.Name == "" {
			return fmt.Errorf("%w: item %d has no name", ErrInvalidPayload, i)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %q has quantity %d", ErrInvalidPayload, it.Name, it.Quantity)
		}
	}
	return nil
}

type OpenDrawerPayload struct {
	Pin int `json:"pin"`
}

func (OpenDrawerPayload) JobType() JobType { return JobOpenDrawer }

func (p OpenDrawerPayload) Validate() error {
	if p.Pin != 0 && p.Pin != 1 {
		return fmt.Errorf("%w: drawer pin must be 0 or 1, got %d", ErrInvalidPayload, p.Pin)
	}
	return nil
}

// DecodePayload parses the raw payload into the variant selected by the job type.
func (j PrintJob) DecodePayload() (JobPayload, error) {
	var p JobPayload
	switch j.Type {
	case JobAccountReceipt:
		var v AccountReceiptPayload
		if err := unmarshalPayload(j.Payload, &v); err != nil {
			return nil, err
		}
		p = v
	case JobOpenDrawer:
		var v OpenDrawerPayload
		if err := unmarshalPayload(j.Payload, &v); err != nil {
			return nil, err
		}
		p = v
	default:
		return nil, fmt.Errorf("%w: unknown job type %q", ErrInvalidPayload, j.Type)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func unmarshalPayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}
