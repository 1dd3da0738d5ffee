// Copyright (C) 2025 Christian Rößner
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/croessner/secenh/server/ipapi"
	"github.com/croessner/secenh/server/loginlog"
	"gopkg.in/yaml.v3"
)

// geoFields is the column order of the tabular output formats.
var geoFields = []string{"ip", "country", "cc", "region", "city", "isp", "org", "as", "mobile", "proxy", "hosting"}

// fieldValue renders one record field as text.
func fieldValue(record *ipapi.Record, field string) string {
	triState := func(value *bool) string {
		if value == nil {
			return "N/A"
		}

		if *value {
			return "yes"
		}

		return "no"
	}

	switch field {
	case "ip":
		return record.IP
	case "country":
		return record.Country
	case "cc":
		return record.CountryCode
	case "region":
		return record.Region
	case "city":
		return record.City
	case "isp":
		return record.ISP
	case "org":
		return record.Org
	case "as":
		return record.AS
	case "mobile":
		return triState(record.Mobile)
	case "proxy":
		return triState(record.Proxy)
	case "hosting":
		return triState(record.Hosting)
	}

	return ""
}

// selectFields validates a comma-separated field list, defaulting to all
// fields when empty.
func selectFields(spec string) ([]string, error) {
	if spec == "" {
		return geoFields, nil
	}

	known := make(map[string]struct{}, len(geoFields))

	for _, field := range geoFields {
		known[field] = struct{}{}
	}

	fields := strings.Split(spec, ",")

	for i, field := range fields {
		fields[i] = strings.TrimSpace(field)

		if _, ok := known[fields[i]]; !ok {
			return nil, fmt.Errorf("unknown field %q", fields[i])
		}
	}

	return fields, nil
}

// sortedRecords returns the records ordered by IP for stable output.
func sortedRecords(records map[string]*ipapi.Record) []*ipapi.Record {
	ips := make([]string, 0, len(records))

	for ip := range records {
		ips = append(ips, ip)
	}

	sort.Strings(ips)

	result := make([]*ipapi.Record, 0, len(ips))

	for _, ip := range ips {
		result = append(result, records[ip])
	}

	return result
}

// writeTable renders records as an aligned table.
func writeTable(out io.Writer, records map[string]*ipapi.Record, fields []string) error {
	writer := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)

	fmt.Fprintln(writer, strings.ToUpper(strings.Join(fields, "\t")))

	for _, record := range sortedRecords(records) {
		values := make([]string, len(fields))

		for i, field := range fields {
			values[i] = fieldValue(record, field)
		}

		fmt.Fprintln(writer, strings.Join(values, "\t"))
	}

	return writer.Flush()
}

// writeCSV renders records as CSV with a header row.
func writeCSV(out io.Writer, records map[string]*ipapi.Record, fields []string) error {
	writer := csv.NewWriter(out)

	if err := writer.Write(fields); err != nil {
		return err
	}

	for _, record := range sortedRecords(records) {
		values := make([]string, len(fields))

		for i, field := range fields {
			values[i] = fieldValue(record, field)
		}

		if err := writer.Write(values); err != nil {
			return err
		}
	}

	writer.Flush()

	return writer.Error()
}

// writeYAML renders records as a YAML document keyed by IP.
func writeYAML(out io.Writer, records map[string]*ipapi.Record) error {
	document := make(map[string]map[string]string, len(records))

	for ip, record := range records {
		entry := make(map[string]string, len(geoFields))

		for _, field := range geoFields {
			entry[field] = fieldValue(record, field)
		}

		document[ip] = entry
	}

	return yaml.NewEncoder(out).Encode(document)
}

// writeJSON renders records as indented JSON.
func writeJSON(out io.Writer, records map[string]*ipapi.Record) error {
	encoded, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(out, string(encoded))

	return err
}

// writeLoginLog renders journal entries as an aligned table, newest first.
func writeLoginLog(out io.Writer, entries []*loginlog.Entry) error {
	writer := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)

	fmt.Fprintln(writer, "TIME\tRESULT\tUSERNAME\tIP\tCODE\tLOCATION")

	for _, entry := range entries {
		result := "failure"

		if entry.Success {
			result = "success"
		}

		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\n",
			time.Unix(entry.Timestamp, 0).UTC().Format(time.RFC3339),
			result,
			entry.Username,
			entry.ClientIP,
			entry.ErrorCode,
			entry.Location,
		)
	}

	return writer.Flush()
}

// writeRecords renders records in the requested format.
func writeRecords(out io.Writer, records map[string]*ipapi.Record, format, fieldSpec string) error {
	fields, err := selectFields(fieldSpec)
	if err != nil {
		return err
	}

	switch format {
	case "table":
		return writeTable(out, records, fields)
	case "csv":
		return writeCSV(out, records, fields)
	case "yaml":
		return writeYAML(out, records)
	case "json":
		return writeJSON(out, records)
	}

	return fmt.Errorf("unknown format %q", format)
}
