// Package version reports the build of the entitypipe binaries.
//
//	go build -ldflags "-X github.com/kbukum/entitypipe/version.Version=1.2.0" ./cmd/pipectl
package version
