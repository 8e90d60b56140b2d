package logging

import "fmt"

// GenerateLogrotateConfig creates a logrotate configuration for a component
func GenerateLogrotateConfig(component string) string {
	return fmt.Sprintf(`# Logrotate configuration for schedopt %s
# Install: sudo cp this file to /etc/logrotate.d/schedopt-%s

%s/%s/*.log {
    weekly
    rotate 8
    compress
    delaycompress
    missingok
    notifempty
    create 0644 schedopt schedopt
    sharedscripts
    postrotate
        systemctl reload schedopt-%s 2>/dev/null || true
    endscript
}
`, component, component, BaseDir, component, component)
}
