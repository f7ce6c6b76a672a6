package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"chatwire/internal/pkg/chat/clients/port"
)

// Reservation statuses that keep a chat relationship open between the two
// parties.
var chatEnablingStatuses = map[string]struct{}{
	"ACCEPTED":  {},
	"COMPLETED": {},
}

// ReservationHTTPClient implements port.ReservationService against the
// reservation REST API.
type ReservationHTTPClient struct {
	base string
	http *http.Client
	log  *logrus.Entry
}

func NewReservationHTTPClient(base string, log *logrus.Entry) *ReservationHTTPClient {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ReservationHTTPClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 5 * time.Second},
		log:  log,
	}
}

var _ port.ReservationService = (*ReservationHTTPClient)(nil)

// CanChat asks the reservation service whether the caller may chat with
// withUserID. Every failure mode answers false: authorization fails closed.
func (c *ReservationHTTPClient) CanChat(ctx context.Context, bearer, withUserID string) bool {
	endpoint := fmt.Sprintf("%s/can-chat?withUserId=%s", c.base, url.QueryEscape(withUserID))
	var resp struct {
		CanChat bool `json:"canChat"`
	}
	if err := c.getJSON(ctx, endpoint, bearer, &resp); err != nil {
		c.log.WithError(err).Warn("reservations: can-chat lookup failed")
		return false
	}
	return resp.CanChat
}

// CounterpartIDs merges the caller's own reservations with the ones made for
// them, keeping the other party of every chat-enabling reservation. A failure
// on one list does not discard the other.
func (c *ReservationHTTPClient) CounterpartIDs(ctx context.Context, bearer, myID string) ([]string, error) {
	seen := make(map[string]struct{})

	var mine []reservationRecord
	if err := c.getJSON(ctx, c.base+"/my", bearer, &mine); err != nil {
		c.log.WithError(err).Debug("reservations: /my lookup failed")
	} else {
		collectCounterparts(seen, mine, myID, func(r reservationRecord) string { return r.TutorID })
	}

	var forMe []reservationRecord
	if err := c.getJSON(ctx, c.base+"/for-me", bearer, &forMe); err != nil {
		c.log.WithError(err).Debug("reservations: /for-me lookup failed")
	} else {
		collectCounterparts(seen, forMe, myID, func(r reservationRecord) string { return r.StudentID })
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out, nil
}

type reservationRecord struct {
	Status    string `json:"status"`
	TutorID   string `json:"tutorId"`
	StudentID string `json:"studentId"`
}

func collectCounterparts(seen map[string]struct{}, records []reservationRecord, myID string, counterpart func(reservationRecord) string) {
	for _, r := range records {
		if _, ok := chatEnablingStatuses[strings.ToUpper(r.Status)]; !ok {
			continue
		}
		id := counterpart(r)
		if id != "" && id != myID {
			seen[id] = struct{}{}
		}
	}
}

func (c *ReservationHTTPClient) getJSON(ctx context.Context, endpoint, bearer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", bearer)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("reservations: %s returned %d", endpoint, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
