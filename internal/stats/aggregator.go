package stats

// Aggregate builds the ClusterReport for one run. Reports are re-sorted into
// order, so the result does not depend on completion order. Reports for hosts
// missing from order are appended in input order; a host in order without a
// report is recorded as Cancelled so that no host silently disappears. For a
// host reported more than once, the first report wins.
func Aggregate(order []Host, reports []HostReport) *ClusterReport {
	byHost := make(map[Host]HostReport, len(reports))
	var extras []Host
	inOrder := make(map[Host]bool, len(order))
	for _, h := range order {
		inOrder[h] = true
	}
	for _, r := range reports {
		if _, dup := byHost[r.host]; dup {
			continue
		}
		byHost[r.host] = r
		if !inOrder[r.host] {
			extras = append(extras, r.host)
		}
	}

	cluster := &ClusterReport{
		reports: make([]HostReport, 0, len(order)+len(extras)),
		index:   make(map[Host]int, len(order)+len(extras)),
		totals:  Totals{StateCounts: make(map[VMState]int)},
	}

	add := func(h Host) {
		if _, seen := cluster.index[h]; seen {
			return
		}
		r, ok := byHost[h]
		if !ok {
			r = NewFailedReport(h, ErrorCancelled, "no report", nil)
		}
		cluster.index[h] = len(cluster.reports)
		cluster.reports = append(cluster.reports, r)
		cluster.accumulate(r)
	}
	for _, h := range order {
		add(h)
	}
	for _, h := range extras {
		add(h)
	}

	return cluster
}

// accumulate folds one report into the totals.
func (c *ClusterReport) accumulate(r HostReport) {
	t := &c.totals
	t.Hosts++
	if !r.ok {
		t.FailedHosts++
		return
	}

	t.OKHosts++
	if r.at.After(c.CollectedAt) {
		c.CollectedAt = r.at
	}
	for _, vm := range r.vms {
		t.VMs++
		if vm.State == StateRunning {
			t.RunningVMs++
		}
		t.StateCounts[vm.State]++
		t.VCPUs += vm.VCPUs
		t.CPUTimeNs += vm.CPUTimeNs
		t.MemoryBytes += vm.MemoryBytes
		t.MemoryMaxBytes += vm.MemoryMaxBytes
		t.DiskReadBytes += vm.DiskReadBytes
		t.DiskWriteBytes += vm.DiskWriteBytes
		t.NetRxBytes += vm.NetRxBytes
		t.NetTxBytes += vm.NetTxBytes
	}
}
