package instance

import (
	"path/filepath"
)

// Derived name templates. Deprovisioning relies on JobName producing the
// same name the driver registered under at provisioning time.
const (
	JobNamePrefix    = "H2O_BROKER_"
	outputPathPrefix = "/tmp/h2o/"
	notifyPrefix     = "h2o_ui_"
)

// JobName is the resource manager application name of an instance.
func JobName(instanceID string) string {
	return JobNamePrefix + instanceID
}

// OutputPath is the driver's HDFS output directory for an instance.
func OutputPath(instanceID string) string {
	return outputPathPrefix + instanceID
}

// NotifyPath is the file the driver writes the endpoint to. An empty dir
// keeps it relative to the working directory.
func NotifyPath(dir, instanceID string) string {
	name := notifyPrefix + instanceID
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}
