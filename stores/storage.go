package stores

import (
	"os"

	"github.com/sirupsen/logrus"

	"cardforge/core"
	"cardforge/stores/memory"
	"cardforge/stores/sqlite"
)

// Store is a union interface that includes all store types.
type Store interface {
	core.CardStore
	core.DesignStore
	core.FaceRecordStore
	core.DeliveryStore
}

func GetStore() Store {
	storageType := os.Getenv("STORAGE_TYPE")
	var store Store

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "cardforge.db" // Default filename
		}
		storageField["dataSourceName"] = dataSourceName
		store = sqlite.NewStore(dataSourceName)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
