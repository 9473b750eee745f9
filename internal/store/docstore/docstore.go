// Package docstore implements the repositories on Cloud Firestore using the
// collection layout of the mobile app: users, sessions, attendance,
// attendanceCorrectionRequests, parikshanScores, finalParikshanScores and
// globalConfig/parikshanSettings.
package docstore

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	colUsers       = "users"
	colSessions    = "sessions"
	colAttendance  = "attendance"
	colCorrections = "attendanceCorrectionRequests"
	colScores      = "parikshanScores"
	colFinalScores = "finalParikshanScores"
	colConfig      = "globalConfig"
	docParikshan   = "parikshanSettings"
)

func isNotFound(err error) bool { return status.Code(err) == codes.NotFound }

func isAlreadyExists(err error) bool { return status.Code(err) == codes.AlreadyExists }

// Ping reads the settings document. A missing document still proves the
// database is reachable.
func Ping(ctx context.Context, client *firestore.Client) error {
	_, err := client.Collection(colConfig).Doc(docParikshan).Get(ctx)
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}
