package toast

// Level represents the notification type.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Notification is a single user-visible message.
type Notification struct {
	Level   Level
	Title   string
	Message string
}

// Notifier receives notifications for display to the user.
// Implementations must not block the caller.
type Notifier interface {
	Show(n Notification)
}

// Success shows a success notification.
//
//	toast.Success(notifier, "Added to collection")
func Success(n Notifier, message string) {
	n.Show(Notification{Level: LevelSuccess, Message: message})
}

// Error shows an error notification.
//
//	toast.Error(notifier, "Failed to like image")
func Error(n Notifier, message string) {
	n.Show(Notification{Level: LevelError, Message: message})
}

// Warning shows a warning notification.
func Warning(n Notifier, message string) {
	n.Show(Notification{Level: LevelWarning, Message: message})
}

// Info shows an info notification.
func Info(n Notifier, message string) {
	n.Show(Notification{Level: LevelInfo, Message: message})
}

// WithTitle shows a notification with a title and message.
//
//	toast.WithTitle(notifier, toast.LevelInfo, "User joined", "Bob joined the collaboration")
func WithTitle(n Notifier, level Level, title, message string) {
	n.Show(Notification{Level: level, Title: title, Message: message})
}
