package utils

import (
	"fmt"

	"book-catalog/internal/models"
)

func ExportData(logs []models.AuditLog) error {
	for _, log := range logs {
		//change with actual calls
		fmt.Println(log.Timestamp, log.Entity, log.Action, log.Data)
	}
	return nil
}
