package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"campsite/internal/database"
	"campsite/internal/domain"
	"campsite/internal/export"
	"campsite/internal/models"
	"campsite/internal/service"

	"github.com/spf13/cobra"
)

func parseDateFlag(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, err := models.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func newBookCmd(opts *options) *cobra.Command {
	var start, end, email, name string

	cmd := &cobra.Command{
		Use:   "book",
		Short: "Reserve the campsite for a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			startDate, err := models.ParseDate(start)
			if err != nil {
				return err
			}
			endDate, err := models.ParseDate(end)
			if err != nil {
				return err
			}

			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			id, err := s.reservations.Book(cmd.Context(), models.NewDateRange(startDate, endDate), email, name)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(out, map[string]string{"id": id.String()})
			}
			printSuccess(out, fmt.Sprintf("Reservation %s booked", id))
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "First night, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "Last night, YYYY-MM-DD")
	cmd.Flags().StringVar(&email, "email", "", "Guest email")
	cmd.Flags().StringVar(&name, "name", "", "Guest name")
	for _, flag := range []string{"start", "end", "email", "name"} {
		_ = cmd.MarkFlagRequired(flag)
	}
	return cmd
}

func newUpdateCmd(opts *options) *cobra.Command {
	var start, end, email, name string

	cmd := &cobra.Command{
		Use:   "update <reservation-id>",
		Short: "Change the dates or guest of a reservation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := service.ParseReservationID(args[0])
			if err != nil {
				return err
			}
			req := domain.UpdateRequest{Email: email, Name: name}
			if req.Start, err = parseDateFlag(start); err != nil {
				return err
			}
			if req.End, err = parseDateFlag(end); err != nil {
				return err
			}

			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.reservations.Update(cmd.Context(), id, req); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(out, map[string]string{"id": id.String(), "status": "updated"})
			}
			printSuccess(out, fmt.Sprintf("Reservation %s updated", id))
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "New first night, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "New last night, YYYY-MM-DD")
	cmd.Flags().StringVar(&email, "email", "", "New guest email")
	cmd.Flags().StringVar(&name, "name", "", "New guest name")
	cmd.MarkFlagsRequiredTogether("start", "end")
	return cmd
}

func newCancelCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <reservation-id>",
		Short: "Cancel a reservation and free its dates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := service.ParseReservationID(args[0])
			if err != nil {
				return err
			}

			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			result, err := s.reservations.Cancel(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(out, result)
			}
			printSuccess(out, fmt.Sprintf("Reservation %s cancelled, %d date(s) freed", id, result.AllocationsDeleted))
			if !result.LinkDeleted {
				printWarning(out, "no guest link was stored for this reservation")
			}
			if !result.GuestDeleted {
				printWarning(out, "no guest record was stored for this reservation")
			}
			return nil
		},
	}
}

func newShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <reservation-id>",
		Short: "Print the dates and guest of a reservation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := service.ParseReservationID(args[0])
			if err != nil {
				return err
			}

			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			reservation, err := s.reservations.Reservation(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(out, reservation)
			}
			printSection(out, "Reservation "+reservation.ID)
			printLabelValue(out, "Dates", strings.Join(reservation.Dates, ", "))
			if reservation.Guest != nil {
				printLabelValue(out, "Guest", reservation.Guest.Name)
				printLabelValue(out, "Email", reservation.Guest.Email)
			}
			return nil
		},
	}
}

func newAvailabilityCmd(opts *options) *cobra.Command {
	var start, end string
	var freeOnly bool

	cmd := &cobra.Command{
		Use:   "availability",
		Short: "List free and booked dates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			startDate, err := parseDateFlag(start)
			if err != nil {
				return err
			}
			endDate, err := parseDateFlag(end)
			if err != nil {
				return err
			}

			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			r, err := s.policy.ValidateAvailabilityQuery(startDate, endDate)
			if err != nil {
				return err
			}
			availability, err := s.reservations.GetAvailability(cmd.Context(), r)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(out, availability)
			}

			dates := make([]string, 0, len(availability))
			for date := range availability {
				dates = append(dates, date)
			}
			sort.Strings(dates)

			printSection(out, "Availability "+r.String())
			for _, date := range dates {
				switch {
				case availability[date]:
					_, _ = successColor.Fprintf(out, "%s  free\n", date)
				case !freeOnly:
					_, _ = dimColor.Fprintf(out, "%s  booked\n", date)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "First date, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&end, "end", "", "Last date, YYYY-MM-DD")
	cmd.Flags().BoolVar(&freeOnly, "free", false, "Only list free dates")
	cmd.MarkFlagsRequiredTogether("start", "end")
	return cmd
}

func newExportCmd(opts *options) *cobra.Command {
	var start, end, dir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write an xlsx occupancy sheet for a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			startDate, err := models.ParseDate(start)
			if err != nil {
				return err
			}
			endDate, err := models.ParseDate(end)
			if err != nil {
				return err
			}
			r := models.NewDateRange(startDate, endDate)
			if r.Start.After(r.End) {
				return domain.NewValidationError(service.ReasonRangeInverted)
			}

			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if dir == "" {
				dir = s.cfg.Exports.Path
			}
			path, err := export.NewExporter(s.store, dir, s.logger).Export(cmd.Context(), r)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(out, map[string]string{"path": path})
			}
			printSuccess(out, "Exported to "+path)
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "First date, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "Last date, YYYY-MM-DD")
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (default from config)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newBackupCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the SQLite database into the backup directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			db, ok := s.store.(*database.DB)
			if !ok {
				return errors.New("backup is only supported for the sqlite driver")
			}

			backup := database.NewBackupService(db, s.cfg.Backup, s.logger)
			report, err := backup.PerformBackup(cmd.Context())
			if err != nil {
				return err
			}
			removed := backup.CleanupOldBackups()

			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(out, report)
			}
			printSuccess(out, "Backup written to "+report.Path)
			printLabelValue(out, "Reservations", fmt.Sprint(report.Reservations))
			printLabelValue(out, "Allocations", fmt.Sprint(report.Allocations))
			printLabelValue(out, "Guests", fmt.Sprint(report.Guests))
			if report.Orphaned > 0 {
				printWarning(out, fmt.Sprintf("%d reservation(s) have no guest link", report.Orphaned))
			}
			if removed > 0 {
				printLabelValue(out, "Pruned", fmt.Sprintf("%d old file(s)", removed))
			}
			return nil
		},
	}
}
