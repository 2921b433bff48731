package data

import (
	"sync"

	"gorm.io/gorm"
)

// Setting is a name/value row of the settings table. Rows override environment variables.
type Setting struct {
	ID    uint   `gorm:"primaryKey"`
	Name  string `gorm:"size:128;uniqueIndex"`
	Value string `gorm:"type:text"`
}

var (
	settingsCache map[string]string
	settingsMu    sync.RWMutex
)

// LoadSettings loads all settings from the database into cache
func LoadSettings(db *gorm.DB) error {
	if err := db.AutoMigrate(&Setting{}); err != nil {
		return err
	}
	var settings []Setting
	if err := db.Find(&settings).Error; err != nil {
		return err
	}

	settingsMu.Lock()
	defer settingsMu.Unlock()

	settingsCache = make(map[string]string, len(settings))
	for _, s := range settings {
		settingsCache[s.Name] = s.Value
	}

	return nil
}

// GetSetting retrieves a setting value from cache (call LoadSettings first)
func GetSetting(name string) string {
	settingsMu.RLock()
	defer settingsMu.RUnlock()
	return settingsCache[name]
}
