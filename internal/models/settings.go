package models

// Chaves da tabela settings
const (
	SettingSiteBaseDiscount    = "site_base_discount"
	SettingNotificationChannel = "notification_channel_id"
)
