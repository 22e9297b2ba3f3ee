package browsertest

// SampleCourses returns a two-course portal fixture: "Urban analytics" with
// labs "Week 1" (two handouts) and "Week 2" (one handout), and "Data science"
// with lab "Intro" (one handout).
func SampleCourses() []Course {
	return []Course{
		{
			Name:          "Urban analytics",
			Credit:        "100",
			Consumed:      "10",
			Students:      "5",
			ProjectGroups: "1",
			Labs: []Lab{
				{Name: "Week 1", Handouts: []Handout{
					sampleHandout("uahandout1", "sub-ua-1", "Mar 4, 2022", "alice@uni.ac.uk"),
					sampleHandout("uahandout2", "sub-ua-2", "Apr 1, 2022", "bob@uni.ac.uk", "carol@uni.ac.uk"),
				}},
				{Name: "Week 2", Handouts: []Handout{
					sampleHandout("uahandout3", "sub-ua-3", "May 10, 2022", "alice@uni.ac.uk"),
				}},
			},
		},
		{
			Name:          "Data science",
			Credit:        "200",
			Consumed:      "20",
			Students:      "8",
			ProjectGroups: "2",
			Labs: []Lab{
				{Name: "Intro", Handouts: []Handout{
					sampleHandout("dshandout1", "sub-ds-1", "Jun 30, 2022", "dave@uni.ac.uk"),
				}},
			},
		},
	}
}

func sampleHandout(name, id, expiry string, users ...string) Handout {
	return Handout{
		Name:               name,
		Budget:             "$50.00",
		Consumed:           "$5.00",
		Status:             "Accepted",
		SubscriptionID:     id,
		SubscriptionStatus: "Active",
		Expiry:             expiry,
		Users:              users,
	}
}
