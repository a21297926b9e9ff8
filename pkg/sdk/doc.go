// Package carscore is an embeddable client for vehicle reliability scoring.
//
// A Client answers "how reliable is this car" queries. Answers already stored
// for a sufficiently similar vehicle are reused; otherwise a language-model
// oracle is asked (with retries and a model fallback), its JSON is repaired
// and validated, a mileage adjustment is applied and the answer is stored.
// Fresh answers are capped per day, globally and per requester.
//
//	client, err := carscore.New(ctx,
//	    carscore.WithSQLite("file:carscore.db"),
//	    carscore.WithOracle(os.Getenv("GEMINI_API_KEY"), carscore.GeminiBaseURL),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	res, err := client.Analyze(ctx, carscore.AnalyzeRequest{
//	    Requester: "user-42",
//	    Vehicle: carscore.Vehicle{
//	        Make: "Mazda", Model: "3", Year: 2017, MileageRange: "100-150k",
//	    },
//	})
//	switch {
//	case errors.Is(err, carscore.ErrQuotaExceeded):
//	    // try again tomorrow
//	case err != nil:
//	    return err
//	}
//	fmt.Println(res.Summary, res.Provenance.Tag)
package carscore
