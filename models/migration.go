package models

import (
	"log"

	"github.com/mmdatafocus/wholesale_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Supplier{},
		&Product{}, &StockMovement{},
		&Order{}, &OrderItem{}, &OrderOutbox{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
